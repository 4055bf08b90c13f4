// Package schema extracts and caches a summary of a SPARQL endpoint's
// vocabulary: its classes, properties and DCAT catalog statistics.
//
// A Snapshot is immutable. Refreshing a schema builds a new Snapshot and
// swaps it in atomically, so concurrent readers never see a partial update.
package schema

import (
	"strings"
	"time"
)

// Class is an RDF class declared by the endpoint.
type Class struct {
	URI           string `json:"uri"`
	Name          string `json:"name"`
	Label         string `json:"label,omitempty"`
	InstanceCount int    `json:"instance_count"`
}

// Property is an RDF property declared or used by the endpoint.
type Property struct {
	URI        string `json:"uri"`
	Name       string `json:"name"`
	UsageCount int    `json:"usage_count"`
	Domain     string `json:"domain,omitempty"`
	Range      string `json:"range,omitempty"`
}

// Statistics are DCAT catalog counts.
type Statistics struct {
	Datasets      int `json:"datasets"`
	Distributions int `json:"distributions"`
	Catalogs      int `json:"catalogs"`
	Publishers    int `json:"publishers"`
	Themes        int `json:"themes"`
}

// Snapshot summarizes an endpoint's vocabulary at ExtractedAt.
// Classes and Properties are ordered by count, highest first.
type Snapshot struct {
	Endpoint    string     `json:"endpoint"`
	Classes     []Class    `json:"classes"`
	Properties  []Property `json:"properties"`
	Statistics  Statistics `json:"statistics"`
	ExtractedAt time.Time  `json:"extracted_at"`
}

// Empty returns a snapshot with no vocabulary. Its zero ExtractedAt makes it
// expired immediately.
func Empty(endpoint string) *Snapshot {
	return &Snapshot{
		Endpoint:   endpoint,
		Classes:    []Class{},
		Properties: []Property{},
	}
}

// IsEmpty reports whether the snapshot carries no classes or properties.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || (len(s.Classes) == 0 && len(s.Properties) == 0)
}

// Fresh reports whether the snapshot is younger than ttl at now.
func (s *Snapshot) Fresh(now time.Time, ttl time.Duration) bool {
	return s != nil && !s.ExtractedAt.IsZero() && now.Sub(s.ExtractedAt) < ttl
}

// TopClasses returns at most n classes.
func (s *Snapshot) TopClasses(n int) []Class {
	if s == nil || n <= 0 {
		return nil
	}
	if len(s.Classes) < n {
		n = len(s.Classes)
	}
	return s.Classes[:n]
}

// TopProperties returns at most n properties.
func (s *Snapshot) TopProperties(n int) []Property {
	if s == nil || n <= 0 {
		return nil
	}
	if len(s.Properties) < n {
		n = len(s.Properties)
	}
	return s.Properties[:n]
}

// LocalName returns the part of uri after the last '#', or after the last
// '/' when there is no '#'.
func LocalName(uri string) string {
	if i := strings.LastIndex(uri, "#"); i >= 0 {
		return uri[i+1:]
	}
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
