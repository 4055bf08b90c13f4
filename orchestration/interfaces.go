package orchestration

import (
	"context"
	"time"

	"github.com/itsneelabh/nl2sparql/retrieval"
	"github.com/itsneelabh/nl2sparql/schema"
	"github.com/itsneelabh/nl2sparql/sparql"
)

// ExampleRetriever finds stored examples similar to a question.
// *retrieval.Store implements it.
type ExampleRetriever interface {
	RetrieveSimilar(ctx context.Context, question string, k int) ([]retrieval.Match, error)
}

// SchemaProvider returns an endpoint's schema. *schema.Cache implements it.
type SchemaProvider interface {
	GetSchema(ctx context.Context, endpoint string) schema.Result
}

// QueryGenerator turns a prompt into a query. *Generator implements it.
type QueryGenerator interface {
	Generate(ctx context.Context, prompt string) GenerationOutcome
}

// QueryExecutor runs a query. *sparql.HTTPExecutor implements it.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, timeout time.Duration) sparql.Outcome
}

// Synthesizer turns non-empty bindings into the final answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, bindings []sparql.Binding) (string, error)
}

var (
	_ QueryGenerator = (*Generator)(nil)
	_ Synthesizer    = (*TemplateSynthesizer)(nil)
	_ Synthesizer    = (*AISynthesizer)(nil)
)
