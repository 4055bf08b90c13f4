package retrieval

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seed_examples.yaml
var seedExamplesYAML []byte

type exampleFile struct {
	Examples []QueryExample `yaml:"examples"`
}

// SeedExamples returns the built-in examples bound to endpoint.
func SeedExamples(endpoint string) ([]QueryExample, error) {
	examples, err := decodeExamples(seedExamplesYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to decode seed examples: %w", err)
	}
	for i := range examples {
		examples[i].Endpoint = endpoint
	}
	return examples, nil
}

// LoadExamples reads examples from a YAML file with a top-level "examples"
// list. Entries without an endpoint get defaultEndpoint.
func LoadExamples(path, defaultEndpoint string) ([]QueryExample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read examples file %s: %w", path, err)
	}
	examples, err := decodeExamples(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse examples file %s: %w", path, err)
	}
	for i := range examples {
		if examples[i].Endpoint == "" {
			examples[i].Endpoint = defaultEndpoint
		}
	}
	return examples, nil
}

func decodeExamples(data []byte) ([]QueryExample, error) {
	var f exampleFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return f.Examples, nil
}

// Populate adds the built-in examples to store and returns their IDs.
// Already stored examples are skipped without re-embedding.
func Populate(ctx context.Context, store *Store, endpoint string) ([]string, error) {
	examples, err := SeedExamples(endpoint)
	if err != nil {
		return nil, err
	}
	return AddAll(ctx, store, examples)
}

// AddAll adds examples in order, stopping at the first failure.
func AddAll(ctx context.Context, store *Store, examples []QueryExample) ([]string, error) {
	ids := make([]string, 0, len(examples))
	for _, ex := range examples {
		id, err := store.Add(ctx, ex)
		if err != nil {
			return ids, fmt.Errorf("failed to add example %q: %w", ex.Question, err)
		}
		ids = append(ids, id)
	}

	store.logger.Info("Example store populated", map[string]interface{}{
		"operation": "populate",
		"count":     len(ids),
	})
	return ids, nil
}
