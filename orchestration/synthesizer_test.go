package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/itsneelabh/nl2sparql/sparql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateSynthesizer(t *testing.T) {
	s := NewTemplateSynthesizer(10)
	bindings := datasetBindings(12)

	answer, err := s.Synthesize(context.Background(), "find datasets about energy consumption", bindings)
	require.NoError(t, err)

	lines := strings.Split(answer, "\n")
	assert.Equal(t, `Found 12 results for "find datasets about energy consumption":`, lines[0])
	assert.Len(t, lines, 12, "header, ten rows, omitted note")
	assert.Equal(t, "1. Energy consumption statistics 01 | http://data.europa.eu/88u/dataset/energy-01 | https://ec.europa.eu/eurostat/energy-01", lines[1])
	assert.Equal(t, "... and 2 more not shown.", lines[11])
	assert.NotContains(t, answer, "energy-11")
	assert.Empty(t, checkAnswer(answer, bindings))
}

func TestTemplateSynthesizer_RowRendering(t *testing.T) {
	tests := []struct {
		name string
		row  sparql.Binding
		want string
	}{
		{
			name: "preferred columns first, rest sorted",
			row: sparql.Binding{
				"modified":      "2024-01-01",
				"landingPage":   "https://example.org/lp",
				"publisherName": "Eurostat",
				"title":         "GDP",
				"description":   "Gross domestic product",
			},
			want: "GDP | Eurostat | https://example.org/lp | description: Gross domestic product | modified: 2024-01-01",
		},
		{
			name: "blank values skipped",
			row:  sparql.Binding{"title": "  ", "dataset": "http://example.org/d"},
			want: "http://example.org/d",
		},
		{
			name: "no values",
			row:  sparql.Binding{},
			want: "(no values)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderRow(tt.row))
		})
	}
}

func TestTemplateSynthesizer_SingleAndEmpty(t *testing.T) {
	s := NewTemplateSynthesizer(0)
	assert.Equal(t, 10, s.MaxRows)

	one, _ := s.Synthesize(context.Background(), "q", datasetBindings(1))
	assert.True(t, strings.HasPrefix(one, `Found 1 result for "q":`))

	none, _ := s.Synthesize(context.Background(), "q", nil)
	assert.Equal(t, `No results were found for "q".`, none)
}

func TestAISynthesizer(t *testing.T) {
	bindings := datasetBindings(3)

	tests := []struct {
		name         string
		client       *fakeAIClient
		wantModel    bool
		wantFallback string
	}{
		{
			name: "grounded answer is kept",
			client: &fakeAIClient{content: "I found 3 datasets on energy consumption, for example " +
				"https://ec.europa.eu/eurostat/energy-01."},
			wantModel: true,
		},
		{
			name:         "missing count falls back",
			client:       &fakeAIClient{content: "Several datasets match your question."},
			wantFallback: "Found 3 results",
		},
		{
			name:         "invented url falls back",
			client:       &fakeAIClient{content: "I found 3 datasets, see https://invented.example.com/energy."},
			wantFallback: "Found 3 results",
		},
		{
			name:         "service error falls back with raw summary",
			client:       &fakeAIClient{err: errors.New("status 503")},
			wantFallback: "Successfully retrieved 3 results, but failed to synthesize a final answer.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewAISynthesizer(tt.client, nil, "gpt-4o", nil)
			answer, err := s.Synthesize(context.Background(), "energy consumption", bindings)
			require.NoError(t, err)

			if tt.wantModel {
				assert.Equal(t, tt.client.content, answer)
			} else {
				assert.True(t, strings.HasPrefix(answer, tt.wantFallback), answer)
			}

			assert.Contains(t, tt.client.prompt, `Given the original user query: "energy consumption"`)
			assert.Contains(t, tt.client.prompt, "found 3 items")
			assert.Contains(t, tt.client.prompt, "Do NOT invent information")
			assert.Contains(t, tt.client.prompt, "energy-02")
		})
	}
}

func TestCheckAnswer(t *testing.T) {
	bindings := []sparql.Binding{
		{"dataset": "http://data.europa.eu/88u/dataset/a", "title": "A"},
		{"dataset": "http://data.europa.eu/88u/dataset/b", "title": "B"},
	}

	assert.Empty(t, checkAnswer("Found 2 datasets: http://data.europa.eu/88u/dataset/a.", bindings))
	assert.Empty(t, checkAnswer("2 results (see `http://data.europa.eu/88u/dataset/b`)", bindings))
	assert.Contains(t, checkAnswer("Found two datasets.", bindings), "count")
	assert.Contains(t, checkAnswer("Found 2: http://data.europa.eu/88u/dataset/c", bindings), "not present")
}
