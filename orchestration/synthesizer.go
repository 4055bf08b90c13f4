package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/sparql"
)

// preferredColumns are listed first when a row is rendered.
var preferredColumns = []string{"title", "dataset", "publisherName", "landingPage"}

// TemplateSynthesizer renders bindings as a numbered list. It only emits
// binding values, so it cannot invent facts.
type TemplateSynthesizer struct {
	MaxRows int
}

// NewTemplateSynthesizer creates a TemplateSynthesizer listing up to maxRows rows.
func NewTemplateSynthesizer(maxRows int) *TemplateSynthesizer {
	if maxRows <= 0 {
		maxRows = 10
	}
	return &TemplateSynthesizer{MaxRows: maxRows}
}

// Synthesize never fails.
func (s *TemplateSynthesizer) Synthesize(_ context.Context, question string, bindings []sparql.Binding) (string, error) {
	return s.render(question, bindings), nil
}

func (s *TemplateSynthesizer) render(question string, bindings []sparql.Binding) string {
	if len(bindings) == 0 {
		return fmt.Sprintf("No results were found for %q.", question)
	}

	var b strings.Builder
	noun := "results"
	if len(bindings) == 1 {
		noun = "result"
	}
	fmt.Fprintf(&b, "Found %d %s for %q:\n", len(bindings), noun, question)

	shown := bindings
	if len(shown) > s.MaxRows {
		shown = shown[:s.MaxRows]
	}
	for i, row := range shown {
		fmt.Fprintf(&b, "%d. %s\n", i+1, renderRow(row))
	}
	if omitted := len(bindings) - len(shown); omitted > 0 {
		fmt.Fprintf(&b, "... and %d more not shown.\n", omitted)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRow(row sparql.Binding) string {
	seen := make(map[string]struct{}, len(preferredColumns))
	parts := make([]string, 0, len(row))
	for _, col := range preferredColumns {
		seen[col] = struct{}{}
		if v := strings.TrimSpace(row[col]); v != "" {
			parts = append(parts, v)
		}
	}

	rest := make([]string, 0, len(row))
	for col := range row {
		if _, ok := seen[col]; !ok {
			rest = append(rest, col)
		}
	}
	sort.Strings(rest)
	for _, col := range rest {
		if v := strings.TrimSpace(row[col]); v != "" {
			parts = append(parts, col+": "+v)
		}
	}

	if len(parts) == 0 {
		return "(no values)"
	}
	return strings.Join(parts, " | ")
}

// AISynthesizer asks the text-generation service for a prose answer and
// checks it against the bindings. An answer that omits the result count or
// cites a URL absent from the bindings is replaced by the template answer.
type AISynthesizer struct {
	client   core.AIClient
	fallback *TemplateSynthesizer
	options  core.AIOptions
	timeout  time.Duration
	maxRows  int
	logger   core.Logger
}

// NewAISynthesizer creates an AISynthesizer. fallback may be nil.
func NewAISynthesizer(client core.AIClient, fallback *TemplateSynthesizer, model string, logger core.Logger) *AISynthesizer {
	if fallback == nil {
		fallback = NewTemplateSynthesizer(0)
	}
	return &AISynthesizer{
		client:   client,
		fallback: fallback,
		options:  core.AIOptions{Model: model, Temperature: 0.2, MaxTokens: 1024},
		timeout:  core.DefaultGenerationTimeout,
		maxRows:  50,
		logger:   core.ComponentLogger(logger, "framework/orchestration"),
	}
}

// Synthesize returns the model's answer, or the template answer when the
// model fails or its answer does not check out.
func (s *AISynthesizer) Synthesize(ctx context.Context, question string, bindings []sparql.Binding) (string, error) {
	prompt, err := s.prompt(question, bindings)
	if err != nil {
		return s.fallback.render(question, bindings), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := s.options
	resp, err := s.client.GenerateResponse(callCtx, prompt, &opts)
	if err != nil || resp == nil || strings.TrimSpace(resp.Content) == "" {
		s.logger.Warn("Answer synthesis failed, using template", map[string]interface{}{
			"operation": "synthesize_answer",
			"error":     err,
		})
		return SynthesisFallback(len(bindings), s.fallback.render(question, bindings)), nil
	}

	answer := strings.TrimSpace(resp.Content)
	if problem := checkAnswer(answer, bindings); problem != "" {
		s.logger.Warn("Synthesized answer rejected, using template", map[string]interface{}{
			"operation": "synthesize_answer",
			"problem":   problem,
		})
		return s.fallback.render(question, bindings), nil
	}
	return answer, nil
}

func (s *AISynthesizer) prompt(question string, bindings []sparql.Binding) (string, error) {
	rows := bindings
	if len(rows) > s.maxRows {
		rows = rows[:s.maxRows]
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Given the original user query: %q\n\n", question)
	fmt.Fprintf(&b, "The following results were retrieved from the SPARQL endpoint (found %d items", len(bindings))
	if len(rows) < len(bindings) {
		fmt.Fprintf(&b, ", first %d shown", len(rows))
	}
	b.WriteString("):\n")
	b.Write(data)
	b.WriteString(`

Instructions:
- Synthesize a concise, helpful answer to the user's query based *only* on the provided results.
- Summarize the key findings.
- If results are empty, state that clearly.
- Mention the number of results found.
- Where relevant, mention dataset URIs, titles or landing pages from the results.
- Do NOT invent information not present in the results.
- If the results seem incomplete or only partially answer the question, acknowledge that.
- Format the answer clearly.
`)
	return b.String(), nil
}

// SynthesisFallback is the text used when synthesis fails outright.
func SynthesisFallback(count int, summary string) string {
	return fmt.Sprintf("Successfully retrieved %d results, but failed to synthesize a final answer. "+
		"Raw results summary:\n%s", count, summary)
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'()\[\]]+`)

// checkAnswer returns a description of why answer cannot be trusted, or
// "" if it can.
func checkAnswer(answer string, bindings []sparql.Binding) string {
	if !strings.Contains(answer, strconv.Itoa(len(bindings))) {
		return "answer does not state the result count"
	}

	known := make(map[string]struct{})
	for _, row := range bindings {
		for _, v := range row {
			for _, u := range urlPattern.FindAllString(v, -1) {
				known[strings.TrimRight(u, ".,;:")] = struct{}{}
			}
		}
	}
	for _, u := range urlPattern.FindAllString(answer, -1) {
		u = strings.TrimRight(u, ".,;:*`")
		if _, ok := known[u]; !ok {
			return "answer cites a URL not present in the results: " + u
		}
	}
	return ""
}
