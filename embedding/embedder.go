// Package embedding turns text into vectors for example retrieval.
//
// Two embedders are provided: HTTPEmbedder calls any OpenAI-compatible
// /embeddings endpoint (OpenAI, Hugging Face TEI, LocalAI), and HashEmbedder
// computes lexical feature-hashing vectors locally with no external service.
// Embeddings are cached by content hash through the Cache interface.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Generate creates embeddings for the given texts.
	// For a single text, pass a slice with one element.
	Generate(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings produced by this embedder.
	Dimensions() int

	// Model returns the model identifier used by this embedder.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Cache provides content-addressed caching for embeddings.
type Cache interface {
	// Get retrieves a cached embedding for the given content hash.
	// ok is false on a miss.
	Get(ctx context.Context, contentHash string) (embedding []float32, ok bool)

	// Put stores an embedding under the given content hash.
	Put(ctx context.Context, contentHash string, embedding []float32) error
}

// ContentHash generates a SHA-256 hash of text content for use as a cache key.
func ContentHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// CosineSimilarity computes the cosine similarity between two vectors.
//
// Returns a value between -1 and 1. Vectors of different lengths, empty
// vectors and zero vectors have similarity 0.
//
// Formula: cos(θ) = (A · B) / (||A|| × ||B||)
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, magA, magB float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0.0 || magB == 0.0 {
		return 0.0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// CosineDistance is 1 - CosineSimilarity: 0 for identical direction, 2 for
// opposite vectors.
func CosineDistance(a, b []float32) float64 {
	return 1.0 - CosineSimilarity(a, b)
}
