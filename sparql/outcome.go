// Package sparql executes queries against a SPARQL endpoint and classifies
// every response into a small, closed set of outcomes.
//
// Callers never see transport errors: a request either succeeds with zero or
// more bindings, times out, fails at the HTTP layer, or returns a body that is
// not a SPARQL JSON results document.
package sparql

import (
	"fmt"
	"time"
)

// Kind identifies an Outcome variant.
type Kind int

const (
	KindSuccess Kind = iota
	KindTimeout
	KindRequestError
	KindParseError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTimeout:
		return "timeout"
	case KindRequestError:
		return "request_error"
	case KindParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// Binding is one result row: variable name to term value.
type Binding map[string]string

// Outcome is the result of one query execution. It is one of Success,
// Timeout, RequestError or ParseError.
type Outcome interface {
	Kind() Kind
	String() string
	outcome()
}

// Success is a parsed results document. Zero bindings is still a success.
type Success struct {
	Bindings []Binding
}

// Timeout means the request did not complete within the execution timeout.
type Timeout struct {
	After time.Duration
}

// RequestError is a non-timeout transport failure or a non-2xx response.
type RequestError struct {
	StatusCode int // 0 for transport failures
	Message    string
}

// ParseError means the response body was not a SPARQL JSON results document.
type ParseError struct {
	Message string
}

func (Success) Kind() Kind      { return KindSuccess }
func (Timeout) Kind() Kind      { return KindTimeout }
func (RequestError) Kind() Kind { return KindRequestError }
func (ParseError) Kind() Kind   { return KindParseError }

func (Success) outcome()      {}
func (Timeout) outcome()      {}
func (RequestError) outcome() {}
func (ParseError) outcome()   {}

// Empty reports whether the query matched nothing.
func (s Success) Empty() bool {
	return len(s.Bindings) == 0
}

func (s Success) String() string {
	return fmt.Sprintf("Query returned %d results", len(s.Bindings))
}

func (t Timeout) String() string {
	return fmt.Sprintf("Request timed out after %g seconds", t.After.Seconds())
}

func (e RequestError) String() string {
	return e.Message
}

func (e ParseError) String() string {
	return e.Message
}

// truncate returns at most n bytes of s without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
