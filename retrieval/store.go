package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/embedding"
	"github.com/itsneelabh/nl2sparql/telemetry"
)

// EmbeddingError reports that the embedding collaborator failed while adding
// or retrieving examples. It matches core.ErrEmbeddingFailed.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("%s: embedding failed: %v", e.Op, e.Err)
}

// Unwrap exposes both the cause and core.ErrEmbeddingFailed.
func (e *EmbeddingError) Unwrap() []error {
	return []error{core.ErrEmbeddingFailed, e.Err}
}

// Store is the example store: an embedder plus a vector index.
// It is safe for concurrent use if the index is.
type Store struct {
	embedder embedding.Embedder
	index    VectorIndex
	logger   core.Logger
}

// NewStore creates a store. A nil index defaults to an empty MemoryIndex.
func NewStore(embedder embedding.Embedder, index VectorIndex, logger core.Logger) *Store {
	if index == nil {
		index = NewMemoryIndex()
	}
	return &Store{
		embedder: embedder,
		index:    index,
		logger:   core.ComponentLogger(logger, "framework/retrieval"),
	}
}

// Add stores example and returns its ID. An example already present is not
// embedded again.
func (s *Store) Add(ctx context.Context, example QueryExample) (string, error) {
	example = example.normalized()
	if example.Question == "" || example.Query == "" {
		return "", &core.FrameworkError{
			Op:      "retrieval.Add",
			Kind:    "retrieval",
			Message: "example question and query are required",
			Err:     core.ErrInvalidInput,
		}
	}

	id := example.ID()
	exists, err := s.index.Contains(ctx, id)
	if err != nil {
		return "", err
	}
	if exists {
		s.logger.Debug("Example already stored", map[string]interface{}{
			"operation":  "add_example",
			"example_id": id,
		})
		return id, nil
	}

	vector, err := s.embedOne(ctx, "retrieval.Add", example.Question)
	if err != nil {
		return "", err
	}

	if err := s.index.Add(ctx, id, vector, example); err != nil {
		return "", err
	}

	s.logger.Info("Example added", map[string]interface{}{
		"operation":  "add_example",
		"example_id": id,
		"question":   example.Question,
		"tags":       strings.Join(example.Tags, ","),
	})
	return id, nil
}

// RetrieveSimilar returns up to k examples nearest to question ordered by
// ascending distance, ties broken by ID.
func (s *Store) RetrieveSimilar(ctx context.Context, question string, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}

	vector, err := s.embedOne(ctx, "retrieval.RetrieveSimilar", question)
	if err != nil {
		return nil, err
	}

	matches, err := s.index.Query(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	// Indexes rank by distance already; re-sort to pin the tie order.
	sortMatches(matches)

	s.logger.Debug("Retrieved similar examples", map[string]interface{}{
		"operation": "retrieve_similar",
		"k":         k,
		"returned":  len(matches),
	})
	return matches, nil
}

// Len returns the number of stored examples.
func (s *Store) Len(ctx context.Context) (int, error) {
	return s.index.Len(ctx)
}

func (s *Store) embedOne(ctx context.Context, op, text string) ([]float32, error) {
	vectors, err := s.embedder.Generate(ctx, []string{text})
	if err == nil && (len(vectors) != 1 || len(vectors[0]) == 0) {
		err = errors.New("embedder returned no vector")
	}
	if err != nil {
		telemetry.Counter(telemetry.MetricEmbeddingErrors, "op", op)
		s.logger.Error("Embedding failed", map[string]interface{}{
			"operation": "embed",
			"op":        op,
			"model":     s.embedder.Model(),
			"error":     err,
		})
		return nil, &EmbeddingError{Op: op, Err: err}
	}
	return vectors[0], nil
}
