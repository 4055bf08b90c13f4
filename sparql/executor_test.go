package sparql

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRows = `{
  "head": {"vars": ["dataset", "title"]},
  "results": {"bindings": [
    {"dataset": {"type": "uri", "value": "http://data.europa.eu/88u/dataset/a"},
     "title": {"type": "literal", "value": "Air quality", "xml:lang": "en"}},
    {"dataset": {"type": "uri", "value": "http://data.europa.eu/88u/dataset/b"},
     "title": {"type": "literal", "value": "Emissions"}}
  ]}
}`

func newExecutor(t *testing.T, h http.HandlerFunc, opts ...ExecutorOption) *HTTPExecutor {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	e, err := NewHTTPExecutor(srv.URL+"/sparql", opts...)
	require.NoError(t, err)
	return e
}

func TestExecute_Classification(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    Kind
		check   func(t *testing.T, o Outcome)
	}{
		{
			name: "rows",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(twoRows))
			},
			kind: KindSuccess,
			check: func(t *testing.T, o Outcome) {
				s := o.(Success)
				require.Len(t, s.Bindings, 2)
				assert.Equal(t, "Air quality", s.Bindings[0]["title"])
				assert.Equal(t, "http://data.europa.eu/88u/dataset/b", s.Bindings[1]["dataset"])
			},
		},
		{
			name: "zero rows is success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"head":{"vars":["s"]},"results":{"bindings":[]}}`))
			},
			kind: KindSuccess,
			check: func(t *testing.T, o Outcome) {
				assert.True(t, o.(Success).Empty())
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "Virtuoso 37000 Error SP030: SPARQL compiler, line 3: syntax error", http.StatusBadRequest)
			},
			kind: KindRequestError,
			check: func(t *testing.T, o Outcome) {
				re := o.(RequestError)
				assert.Equal(t, http.StatusBadRequest, re.StatusCode)
				assert.True(t, strings.HasPrefix(re.Message, "HTTP 400: Virtuoso 37000"))
			},
		},
		{
			name: "long error body is truncated",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, strings.Repeat("x", 1000), http.StatusInternalServerError)
			},
			kind: KindRequestError,
			check: func(t *testing.T, o Outcome) {
				assert.Len(t, o.String(), len("HTTP 500: ")+200)
			},
		},
		{
			name: "html body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>maintenance</html>"))
			},
			kind: KindParseError,
			check: func(t *testing.T, o Outcome) {
				assert.Contains(t, o.String(), "Response was not valid JSON")
				assert.Contains(t, o.String(), "maintenance")
			},
		},
		{
			name: "json without results",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"head":{}}`))
			},
			kind: KindParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newExecutor(t, tt.handler)
			o := e.Execute(context.Background(), "SELECT * WHERE { ?s ?p ?o }", time.Second)
			require.Equal(t, tt.kind, o.Kind(), o.String())
			if tt.check != nil {
				tt.check(t, o)
			}
		})
	}
}

func TestExecute_Request(t *testing.T) {
	var gotQuery, gotAccept, gotPath, gotKey string
	e := newExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotKey = r.URL.Query().Get("key")
		gotAccept = r.Header.Get("Accept")
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(twoRows))
	})
	e.endpoint.RawQuery = "key=abc"

	query := "SELECT ?s WHERE { ?s a <http://www.w3.org/ns/dcat#Dataset> } LIMIT 5"
	o := e.Execute(context.Background(), query, time.Second)
	require.Equal(t, KindSuccess, o.Kind())

	assert.Equal(t, query, gotQuery)
	assert.Equal(t, "abc", gotKey, "existing endpoint parameters are kept")
	assert.Equal(t, ResultsMediaType, gotAccept)
	assert.Equal(t, "/sparql", gotPath)
}

func TestExecute_Timeout(t *testing.T) {
	e := newExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	o := e.Execute(context.Background(), "SELECT * WHERE { ?s ?p ?o }", 50*time.Millisecond)
	require.Equal(t, KindTimeout, o.Kind())
	assert.Equal(t, "Request timed out after 0.05 seconds", o.String())
}

func TestExecute_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	e, err := NewHTTPExecutor(endpoint)
	require.NoError(t, err)

	o := e.Execute(context.Background(), "ASK {}", time.Second)
	require.Equal(t, KindRequestError, o.Kind())
	assert.Zero(t, o.(RequestError).StatusCode)
	assert.True(t, strings.HasPrefix(o.String(), "Request failed:"))
}

func TestExecute_CircuitBreaker(t *testing.T) {
	var calls int32
	cb, err := resilience.NewCircuitBreaker(&resilience.CircuitBreakerConfig{
		Name:             "sparql",
		FailureThreshold: 2,
		SleepWindow:      time.Minute,
	})
	require.NoError(t, err)

	e := newExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}, WithCircuitBreaker(cb))

	for i := 0; i < 2; i++ {
		o := e.Execute(context.Background(), "ASK {}", time.Second)
		require.Equal(t, KindRequestError, o.Kind())
	}
	assert.Equal(t, resilience.StateOpen, cb.GetState())

	o := e.Execute(context.Background(), "ASK {}", time.Second)
	require.Equal(t, KindRequestError, o.Kind())
	assert.Equal(t, "circuit breaker open", o.String())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestExecute_ClientErrorsDoNotTripBreaker(t *testing.T) {
	cb, err := resilience.NewCircuitBreaker(&resilience.CircuitBreakerConfig{
		Name:             "sparql",
		FailureThreshold: 1,
		SleepWindow:      time.Minute,
	})
	require.NoError(t, err)

	e := newExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "syntax error", http.StatusBadRequest)
	}, WithCircuitBreaker(cb))

	for i := 0; i < 3; i++ {
		e.Execute(context.Background(), "SELEC", time.Second)
	}
	assert.Equal(t, resilience.StateClosed, cb.GetState())
}

func TestNewHTTPExecutor_Validation(t *testing.T) {
	_, err := NewHTTPExecutor("")
	assert.ErrorIs(t, err, core.ErrMissingConfiguration)

	_, err = NewHTTPExecutor("not a url")
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestValidationQuery(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"rewrites limit", "SELECT ?s WHERE { ?s ?p ?o } LIMIT 20", "SELECT ?s WHERE { ?s ?p ?o } LIMIT 1"},
		{"case insensitive", "SELECT ?s WHERE { ?s ?p ?o }\nlimit   15", "SELECT ?s WHERE { ?s ?p ?o }\nLIMIT 1"},
		{"appends limit", "SELECT ?s WHERE { ?s ?p ?o }\n", "SELECT ?s WHERE { ?s ?p ?o }\nLIMIT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidationQuery(tt.in))
		})
	}
}

func TestValidate(t *testing.T) {
	var got string
	e := newExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("query")
		if strings.Contains(got, "BROKEN") {
			http.Error(w, "parse error", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(twoRows))
	})

	require.NoError(t, e.Validate(context.Background(), "SELECT ?s WHERE { ?s ?p ?o } LIMIT 15"))
	assert.True(t, strings.HasSuffix(got, "LIMIT 1"))

	err := e.Validate(context.Background(), "BROKEN")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRequestFailed)
	assert.Contains(t, err.Error(), "HTTP 400")
}

func TestParseResults_Ask(t *testing.T) {
	o := ParseResults([]byte(`{"head":{},"boolean":true}`))
	require.Equal(t, KindSuccess, o.Kind())
	assert.Equal(t, []Binding{{"boolean": "true"}}, o.(Success).Bindings)

	o = ParseResults([]byte(`{"head":{},"boolean":false}`))
	assert.True(t, o.(Success).Empty())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	// "é" is two bytes; never split it.
	assert.Equal(t, "a", truncate("aé", 2))
}
