// Package retrieval implements the example store: prior question/query pairs
// indexed by the embedding of their question, retrieved by nearest-neighbour
// search to condition query generation.
//
// Examples are immutable and content addressed. Adding the same
// (question, query) pair twice is a no-op that returns the same ID.
package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// QueryExample is a known-good natural-language question and the SPARQL
// query that answers it.
type QueryExample struct {
	Question    string   `json:"question" yaml:"question"`
	Query       string   `json:"query" yaml:"query"`
	Endpoint    string   `json:"endpoint" yaml:"endpoint"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// ID returns the content hash identifying the example.
func (e QueryExample) ID() string {
	h := sha256.Sum256([]byte(e.Question + "\x00" + e.Query))
	return hex.EncodeToString(h[:])
}

// normalized returns a copy with trimmed fields and tags reduced to a sorted
// set of lowercase values.
func (e QueryExample) normalized() QueryExample {
	out := QueryExample{
		Question:    strings.TrimSpace(e.Question),
		Query:       strings.TrimSpace(e.Query),
		Endpoint:    strings.TrimSpace(e.Endpoint),
		Description: strings.TrimSpace(e.Description),
	}

	seen := make(map[string]struct{}, len(e.Tags))
	for _, tag := range e.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out.Tags = append(out.Tags, tag)
	}
	sort.Strings(out.Tags)
	return out
}

// Match is a retrieved example and its cosine distance from the question.
type Match struct {
	Example  QueryExample `json:"example"`
	Distance float64      `json:"distance"`
}

// sortMatches orders matches by ascending distance, breaking ties by ID.
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Example.ID() < matches[j].Example.ID()
	})
}
