package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/telemetry"
	"github.com/sashabaranov/go-openai"
)

// HTTPEmbedder calls an external OpenAI-compatible embedding service via HTTP.
//
// This implementation works with:
//   - Hugging Face TEI (Text Embeddings Inference)
//   - LocalAI (self-hosted)
//   - OpenAI (cloud)
type HTTPEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	cache      Cache
	logger     core.Logger
}

// HTTPConfig configures the HTTP embedder.
type HTTPConfig struct {
	// BaseURL is the base URL of the embedding service.
	// Examples:
	//   - "http://localhost:8082" (TEI)
	//   - "https://api.openai.com/v1" (OpenAI cloud)
	BaseURL string

	// Model is the embedding model to use, e.g. "all-MiniLM-L6-v2" or
	// "text-embedding-3-small".
	Model string

	// APIKey for authentication (optional for local services).
	APIKey string

	// Timeout for HTTP requests (default: 30s).
	Timeout time.Duration

	// Cache for embedding results (optional but recommended).
	Cache Cache

	// HTTPClient overrides the traced default client.
	HTTPClient *http.Client

	Logger core.Logger
}

// NewHTTPEmbedder creates a new HTTP-based embedder.
func NewHTTPEmbedder(cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base URL is required: %w", core.ErrMissingConfiguration)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required: %w", core.ErrMissingConfiguration)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "dummy-key" // Local services don't need real key
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = cfg.BaseURL
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	} else {
		config.HTTPClient = telemetry.NewTracedHTTPClient(nil, timeout)
	}

	return &HTTPEmbedder{
		client:     openai.NewClientWithConfig(config),
		model:      cfg.Model,
		dimensions: 384, // Updated from the first response
		cache:      cfg.Cache,
		logger:     core.ComponentLogger(cfg.Logger, "framework/embedding"),
	}, nil
}

// Generate creates embeddings by calling the external HTTP service.
// Cached texts are served locally; the rest go out in one batch request.
func (h *HTTPEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings := make([][]float32, len(texts))
	uncachedIndexes := make([]int, 0, len(texts))
	uncachedTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if h.cache != nil {
			if cached, ok := h.cache.Get(ctx, ContentHash(text)); ok {
				embeddings[i] = cached
				telemetry.Counter(telemetry.MetricEmbeddingCache, "result", "hit")
				continue
			}
			telemetry.Counter(telemetry.MetricEmbeddingCache, "result", "miss")
		}
		uncachedIndexes = append(uncachedIndexes, i)
		uncachedTexts = append(uncachedTexts, text)
	}

	if len(uncachedTexts) == 0 {
		return embeddings, nil
	}

	start := time.Now()
	resp, err := h.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: uncachedTexts,
		Model: openai.EmbeddingModel(h.model),
	})
	if err != nil {
		h.logger.Error("Embedding request failed", map[string]interface{}{
			"operation":   "embed",
			"model":       h.model,
			"texts":       len(uncachedTexts),
			"error":       err,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil, fmt.Errorf("embedding API call failed: %v: %w", err, core.ErrEmbeddingFailed)
	}

	if len(resp.Data) != len(uncachedTexts) {
		return nil, fmt.Errorf("API returned %d embeddings for %d texts: %w", len(resp.Data), len(uncachedTexts), core.ErrEmbeddingFailed)
	}

	for i, data := range resp.Data {
		originalIndex := uncachedIndexes[i]
		embeddings[originalIndex] = data.Embedding

		if len(data.Embedding) > 0 {
			h.dimensions = len(data.Embedding)
		}

		if h.cache != nil {
			hash := ContentHash(uncachedTexts[i])
			if err := h.cache.Put(ctx, hash, data.Embedding); err != nil {
				// Log but don't fail - cache is best-effort
				h.logger.Warn("Embedding cache put failed", map[string]interface{}{
					"operation": "embed_cache_put",
					"hash":      hash,
					"error":     err,
				})
			}
		}
	}

	h.logger.Debug("Embeddings generated", map[string]interface{}{
		"operation":   "embed",
		"model":       h.model,
		"requested":   len(texts),
		"fetched":     len(uncachedTexts),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return embeddings, nil
}

// Dimensions returns the dimensionality of embeddings produced.
func (h *HTTPEmbedder) Dimensions() int {
	return h.dimensions
}

// Model returns the model identifier.
func (h *HTTPEmbedder) Model() string {
	return h.model
}

// Close releases resources (no-op for HTTP client).
func (h *HTTPEmbedder) Close() error {
	return nil
}
