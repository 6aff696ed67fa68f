// Package fieldmeta defines the per-field metadata records produced by schema
// discovery and enriched from the knowledge base.
//
// The package is pure data: it owns the DataType taxonomy, importance tiers,
// and a keyed store of FieldMetadata, but no discovery or scoring logic.
package fieldmeta

import (
	"fmt"
	"sort"
)

// DataType is the coarse field type assigned during discovery.
type DataType string

const (
	TypeNumber      DataType = "number"
	TypeBoolean     DataType = "boolean"
	TypeDatetime    DataType = "datetime"
	TypeCategorical DataType = "categorical"
	TypeText        DataType = "text"
)

// Importance tiers rank business criticality of a field.
const (
	TierCritical      = 1
	TierImportant     = 2
	TierSupplementary = 3
)

// MaxSampleValues bounds the number of stringified sample values retained
// per field.
const MaxSampleValues = 5

// FieldMetadata describes one observed column: statistics computed from the
// data plus semantics overlaid from the knowledge base.
//
// Statistics (Completeness, UniqueValues, SampleValues, DataType) always come
// from the data of the current run. Semantics (BusinessPurpose,
// ImportanceTier, BusinessRules, Relationships) come from the knowledge base
// when an entry exists for the field name.
type FieldMetadata struct {
	Name            string   `json:"name"`
	DataType        DataType `json:"data_type"`
	BusinessPurpose string   `json:"business_purpose"`
	ImportanceTier  int      `json:"importance_tier"`
	Completeness    float64  `json:"completeness"`
	UniqueValues    int      `json:"unique_values"`
	SampleValues    []string `json:"sample_values"`
	BusinessRules   []string `json:"business_rules"`
	Relationships   []string `json:"relationships"`
}

// Validate checks the record invariants: completeness must be a fraction and
// the importance tier must be one of the three defined ranks.
func (f FieldMetadata) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("fieldmeta: empty field name")
	}
	if f.Completeness < 0 || f.Completeness > 1 {
		return fmt.Errorf("fieldmeta: %s: completeness %v out of [0,1]", f.Name, f.Completeness)
	}
	if f.ImportanceTier < TierCritical || f.ImportanceTier > TierSupplementary {
		return fmt.Errorf("fieldmeta: %s: importance tier %d out of {1,2,3}", f.Name, f.ImportanceTier)
	}
	if f.UniqueValues < 0 {
		return fmt.Errorf("fieldmeta: %s: negative unique value count", f.Name)
	}
	return nil
}

// HasBusinessContext reports whether the field carries a non-empty business
// purpose (i.e. the knowledge base knew about it).
func (f FieldMetadata) HasBusinessContext() bool {
	return f.BusinessPurpose != ""
}

// Store holds discovered fields keyed by name for one discovery run.
//
// The zero value is not usable; construct with NewStore. The store is not
// safe for concurrent mutation; the pipeline is strictly sequential.
type Store struct {
	fields map[string]*FieldMetadata
}

// NewStore returns an empty field metadata store.
func NewStore() *Store {
	return &Store{fields: make(map[string]*FieldMetadata)}
}

// Put inserts or replaces the metadata for m.Name.
func (s *Store) Put(m FieldMetadata) {
	s.fields[m.Name] = &m
}

// Get returns the metadata for name, if present.
func (s *Store) Get(name string) (FieldMetadata, bool) {
	m, ok := s.fields[name]
	if !ok {
		return FieldMetadata{}, false
	}
	return *m, true
}

// Len returns the number of fields in the store.
func (s *Store) Len() int { return len(s.fields) }

// Names returns all field names in lexical order. Deterministic ordering
// keeps artifacts and reports stable across runs.
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.fields))
	for name := range s.fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// All returns the fields as a name-keyed map copy suitable for serialization.
func (s *Store) All() map[string]FieldMetadata {
	out := make(map[string]FieldMetadata, len(s.fields))
	for name, m := range s.fields {
		out[name] = *m
	}
	return out
}

// ContextCoverage returns the fraction of fields with a non-empty business
// purpose. Empty stores return 0.
func (s *Store) ContextCoverage() float64 {
	if len(s.fields) == 0 {
		return 0
	}
	n := 0
	for _, m := range s.fields {
		if m.HasBusinessContext() {
			n++
		}
	}
	return float64(n) / float64(len(s.fields))
}

// MeanCompleteness returns the average completeness across all fields.
// Empty stores return 0.
func (s *Store) MeanCompleteness() float64 {
	if len(s.fields) == 0 {
		return 0
	}
	sum := 0.0
	for _, m := range s.fields {
		sum += m.Completeness
	}
	return sum / float64(len(s.fields))
}
