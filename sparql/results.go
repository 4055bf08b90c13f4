package sparql

import (
	"encoding/json"
	"strconv"
)

// Term is one RDF term in a SPARQL JSON result row.
type Term struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

// Results is the SPARQL 1.1 Query Results JSON document.
// SELECT responses carry Results; ASK responses carry Boolean.
type Results struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results *struct {
		Bindings []map[string]Term `json:"bindings"`
	} `json:"results,omitempty"`
	Boolean *bool `json:"boolean,omitempty"`
}

// ParseResults decodes a results document into an Outcome. An ASK answer of
// true becomes a single {"boolean": "true"} row; false becomes no rows.
func ParseResults(body []byte) Outcome {
	var doc Results
	if err := json.Unmarshal(body, &doc); err != nil {
		return ParseError{Message: "Response was not valid JSON: " + truncate(string(body), 500)}
	}

	switch {
	case doc.Results != nil:
		bindings := make([]Binding, 0, len(doc.Results.Bindings))
		for _, row := range doc.Results.Bindings {
			b := make(Binding, len(row))
			for name, term := range row {
				b[name] = term.Value
			}
			bindings = append(bindings, b)
		}
		return Success{Bindings: bindings}
	case doc.Boolean != nil:
		if *doc.Boolean {
			return Success{Bindings: []Binding{{"boolean": strconv.FormatBool(true)}}}
		}
		return Success{Bindings: []Binding{}}
	default:
		return ParseError{Message: "Response has neither results nor boolean: " + truncate(string(body), 500)}
	}
}
