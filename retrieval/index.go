package retrieval

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/itsneelabh/nl2sparql/embedding"
)

// VectorIndex is the vector similarity service behind the store.
type VectorIndex interface {
	// Add inserts an example under id. Re-adding an existing id replaces it.
	Add(ctx context.Context, id string, vector []float32, example QueryExample) error

	// Query returns up to k entries nearest to vector, ordered by ascending
	// cosine distance.
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)

	// Contains reports whether id is indexed.
	Contains(ctx context.Context, id string) (bool, error)

	// Len returns the number of indexed examples.
	Len(ctx context.Context) (int, error)
}

type indexEntry struct {
	id      string
	vector  []float32
	example QueryExample
}

// MemoryIndex is an in-process VectorIndex. Readers never block: they load
// an immutable entry slice while writers build and swap in a new one.
type MemoryIndex struct {
	mu      sync.Mutex
	entries atomic.Pointer[[]indexEntry]
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	idx := &MemoryIndex{}
	empty := make([]indexEntry, 0)
	idx.entries.Store(&empty)
	return idx
}

// Add copies the current entries, inserts or replaces id and publishes the
// result.
func (m *MemoryIndex) Add(_ context.Context, id string, vector []float32, example QueryExample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := *m.entries.Load()
	next := make([]indexEntry, 0, len(current)+1)
	for _, e := range current {
		if e.id != id {
			next = append(next, e)
		}
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	next = append(next, indexEntry{id: id, vector: vec, example: example})

	m.entries.Store(&next)
	return nil
}

// Query ranks every entry by cosine distance.
func (m *MemoryIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := *m.entries.Load()
	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		matches = append(matches, Match{
			Example:  e.example,
			Distance: embedding.CosineDistance(vector, e.vector),
		})
	}
	return topK(matches, k), nil
}

// Contains reports whether id is indexed.
func (m *MemoryIndex) Contains(_ context.Context, id string) (bool, error) {
	for _, e := range *m.entries.Load() {
		if e.id == id {
			return true, nil
		}
	}
	return false, nil
}

// Len returns the number of indexed examples.
func (m *MemoryIndex) Len(_ context.Context) (int, error) {
	return len(*m.entries.Load()), nil
}

func topK(matches []Match, k int) []Match {
	sortMatches(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
