// Package knowledge loads and curates the user-maintained knowledge base:
// excluded columns, per-field semantics, field groups, and question-type
// guidance. The document is YAML; its absence is never fatal, a built-in
// default exclude-list keeps discovery running.
package knowledge

import (
	"errors"
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"

	"insight/internal/fieldmeta"
)

// ErrConfigLoad marks a recoverable knowledge-base load failure. Callers log
// it and continue with Default().
var ErrConfigLoad = errors.New("knowledge: config load failed")

// FieldDescription is the knowledge-base entry for one field. Only semantics
// live here; statistics are always recomputed from the data, with the stored
// completeness kept solely to detect drift between runs.
type FieldDescription struct {
	Description     string   `yaml:"description"`
	BusinessPurpose string   `yaml:"business_purpose"`
	Importance      int      `yaml:"importance"`
	Completeness    float64  `yaml:"completeness"`
	SampleValues    []string `yaml:"sample_values,omitempty"`
	Range           string   `yaml:"range,omitempty"`
	SemanticTags    []string `yaml:"semantic_tags,omitempty"`
	BusinessRules   []string `yaml:"business_rules,omitempty"`
	Relationships   []string `yaml:"relationships,omitempty"`
	DataType        string   `yaml:"data_type,omitempty"`
	UniqueValues    int      `yaml:"unique_values,omitempty"`
	DiscoveredDate  string   `yaml:"discovered_date,omitempty"`
	LastUpdated     string   `yaml:"last_updated,omitempty"`
}

// QuestionGuidance carries free-form per-question-type hints from the
// document. The classifier's taxonomy is fixed in code; this guidance only
// feeds prompts.
type QuestionGuidance struct {
	Description    string   `yaml:"description"`
	RequiredFields []string `yaml:"required_fields,omitempty"`
}

// Base is the parsed knowledge-base document.
type Base struct {
	Version           string                      `yaml:"version"`
	LastUpdated       string                      `yaml:"last_updated,omitempty"`
	ExcludeColumns    []string                    `yaml:"exclude_columns"`
	FieldDescriptions map[string]FieldDescription `yaml:"field_descriptions"`
	FieldGroups       map[string][]string         `yaml:"field_groups,omitempty"`
	QuestionTypes     map[string]QuestionGuidance `yaml:"question_types,omitempty"`
	NovelFallback     string                      `yaml:"novel_question_fallback,omitempty"`
}

// Default returns the built-in fallback base: system/audit columns excluded,
// no field semantics.
func Default() *Base {
	return &Base{
		Version: "1.0",
		ExcludeColumns: []string{
			"ROW_ID", "REPORT_DATE", "DATA_DATE", "SOURCE_SYSTEM", "IS_TEST_DATA",
			"CREATED_BY", "CREATED_AT", "UPDATED_BY", "UPDATED_AT", "DELETED_AT",
			"IS_DELETED", "VERSION",
		},
		FieldDescriptions: map[string]FieldDescription{},
	}
}

// Load reads the knowledge base from the given YAML path. Failures return
// an error wrapping ErrConfigLoad; callers fall back to Default().
func Load(cfgPath string) (*Base, error) {
	if cfgPath == "" {
		return nil, fmt.Errorf("%w: no path configured", ErrConfigLoad)
	}
	b, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigLoad, err)
	}
	var base Base
	if err := yaml.Unmarshal(b, &base); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfigLoad, cfgPath, err)
	}
	if base.FieldDescriptions == nil {
		base.FieldDescriptions = map[string]FieldDescription{}
	}
	return &base, nil
}

// Excluded reports whether the column name matches the exclude-list, either
// exactly or via a '*' glob pattern. Matching is case-sensitive.
func (b *Base) Excluded(name string) bool {
	for _, pat := range b.ExcludeColumns {
		if pat == name {
			return true
		}
		if ok, err := path.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Describe returns the stored semantics for a field name, if any.
func (b *Base) Describe(name string) (FieldDescription, bool) {
	d, ok := b.FieldDescriptions[name]
	return d, ok
}

// Enrich overlays knowledge-base semantics onto freshly discovered metadata.
// Statistics on m are left untouched; only business semantics are copied.
// Returns true when the field was known to the base.
func (b *Base) Enrich(m *fieldmeta.FieldMetadata) bool {
	d, ok := b.FieldDescriptions[m.Name]
	if !ok {
		return false
	}
	if d.BusinessPurpose != "" {
		m.BusinessPurpose = d.BusinessPurpose
	} else if d.Description != "" {
		m.BusinessPurpose = d.Description
	}
	if d.Importance >= fieldmeta.TierCritical && d.Importance <= fieldmeta.TierSupplementary {
		m.ImportanceTier = d.Importance
	}
	if len(d.BusinessRules) > 0 {
		m.BusinessRules = append([]string(nil), d.BusinessRules...)
	}
	if len(d.Relationships) > 0 {
		m.Relationships = append([]string(nil), d.Relationships...)
	}
	return true
}

// Save writes the base as YAML to cfgPath. If the file already exists, the
// prior version is copied aside first ("<path>.backup_<stamp>.yaml") so
// curation never destroys history.
func (b *Base) Save(cfgPath, backupStamp string) error {
	if prev, err := os.ReadFile(cfgPath); err == nil {
		backup := fmt.Sprintf("%s.backup_%s.yaml", cfgPath, backupStamp)
		if err := os.WriteFile(backup, prev, 0o644); err != nil {
			return fmt.Errorf("knowledge: write backup: %w", err)
		}
	}

	out, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("knowledge: marshal: %w", err)
	}
	if err := os.WriteFile(cfgPath, out, 0o644); err != nil {
		return fmt.Errorf("knowledge: write %s: %w", cfgPath, err)
	}
	return nil
}
