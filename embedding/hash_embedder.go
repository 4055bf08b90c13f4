package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder produces lexical embeddings by feature hashing.
//
// Each lowercase alphanumeric token (and each adjacent token pair) is hashed
// into one of Dimensions buckets with a sign bit; term frequencies are
// log-damped and the vector is L2 normalized. The output depends only on the
// input text, so vectors are stable across processes and restarts.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hashing embedder. dimensions <= 0 defaults to 384.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Generate creates embeddings for the given texts.
func (h *HashEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		embeddings[i] = h.embed(text)
	}
	return embeddings, nil
}

// Dimensions returns the dimensionality of embeddings.
func (h *HashEmbedder) Dimensions() int {
	return h.dimensions
}

// Model returns the model identifier.
func (h *HashEmbedder) Model() string {
	return fmt.Sprintf("feature-hash-%d", h.dimensions)
}

// Close is a no-op.
func (h *HashEmbedder) Close() error {
	return nil
}

func (h *HashEmbedder) embed(text string) []float32 {
	vec := make([]float64, h.dimensions)

	tokens := tokenize(text)
	counts := make(map[string]int, len(tokens)*2)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+"_"+tok]++
		}
	}

	for term, n := range counts {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(term))
		sum := hasher.Sum64()

		idx := int(sum % uint64(h.dimensions))
		sign := 1.0
		if sum&(1<<63) != 0 {
			sign = -1.0
		}
		vec[idx] += sign * (1.0 + math.Log(float64(n)))
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, h.dimensions)
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

// tokenize lowercases text and splits on anything that is not a letter or
// digit, dropping single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
