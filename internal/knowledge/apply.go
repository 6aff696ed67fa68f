package knowledge

import (
	"sort"
	"strings"
	"time"
)

// NewField describes a column seen in the data but absent from the base.
type NewField struct {
	Name             string   `json:"name" yaml:"name"`
	DataType         string   `json:"data_type" yaml:"data_type"`
	Completeness     float64  `json:"completeness" yaml:"completeness"`
	UniqueValues     int      `json:"unique_values" yaml:"unique_values"`
	SampleValues     []string `json:"sample_values,omitempty" yaml:"sample_values,omitempty"`
	SuggestedPurpose string   `json:"suggested_purpose,omitempty" yaml:"suggested_purpose,omitempty"`
	SuggestedTier    int      `json:"suggested_tier,omitempty" yaml:"suggested_tier,omitempty"`
}

// UpdatedStat records a completeness drift for an already-known column.
type UpdatedStat struct {
	Name            string  `json:"name" yaml:"name"`
	OldCompleteness float64 `json:"old_completeness" yaml:"old_completeness"`
	NewCompleteness float64 `json:"new_completeness" yaml:"new_completeness"`
}

// Insights is the per-run learning output of discovery, consumed by the
// curation tool to evolve the base.
type Insights struct {
	NewFields         []NewField    `json:"new_fields,omitempty" yaml:"new_fields,omitempty"`
	UpdatedStatistics []UpdatedStat `json:"updated_statistics,omitempty" yaml:"updated_statistics,omitempty"`
}

// Empty reports whether the run produced nothing worth curating.
func (in Insights) Empty() bool {
	return len(in.NewFields) == 0 && len(in.UpdatedStatistics) == 0
}

// Merge folds several runs' insights together, keeping the last observation
// per field name.
func Merge(batches []Insights) Insights {
	newByName := map[string]NewField{}
	statByName := map[string]UpdatedStat{}
	for _, b := range batches {
		for _, f := range b.NewFields {
			newByName[f.Name] = f
		}
		for _, s := range b.UpdatedStatistics {
			statByName[s.Name] = s
		}
	}

	var out Insights
	for _, f := range newByName {
		out.NewFields = append(out.NewFields, f)
	}
	for _, s := range statByName {
		out.UpdatedStatistics = append(out.UpdatedStatistics, s)
	}
	sort.Slice(out.NewFields, func(i, j int) bool { return out.NewFields[i].Name < out.NewFields[j].Name })
	sort.Slice(out.UpdatedStatistics, func(i, j int) bool { return out.UpdatedStatistics[i].Name < out.UpdatedStatistics[j].Name })
	return out
}

// SuggestPurpose guesses a business purpose for an unknown column from its
// name. The guess is a starting point for human curation, never gospel.
func SuggestPurpose(name string) string {
	n := strings.ToUpper(name)
	switch {
	case strings.Contains(n, "ID") && !strings.Contains(n, "IDLE"):
		return "Identifier field"
	case strings.Contains(n, "DATE") || strings.Contains(n, "TIME"):
		return "Temporal field"
	case strings.Contains(n, "AMOUNT") || strings.Contains(n, "PRICE") ||
		strings.Contains(n, "COST") || strings.Contains(n, "REVENUE"):
		return "Monetary field"
	case strings.Contains(n, "COUNT") || strings.Contains(n, "QTY") ||
		strings.Contains(n, "QUANTITY") || strings.Contains(n, "VOLUME"):
		return "Quantity field"
	case strings.Contains(n, "RATE") || strings.Contains(n, "PCT") ||
		strings.Contains(n, "PERCENT") || strings.Contains(n, "RATIO"):
		return "Rate or ratio field"
	case strings.Contains(n, "FLAG") || strings.HasPrefix(n, "IS_") || strings.HasPrefix(n, "HAS_"):
		return "Boolean indicator"
	case strings.Contains(n, "NAME") || strings.Contains(n, "DESC"):
		return "Descriptive text field"
	default:
		return "Unclassified field"
	}
}

// SuggestTier proposes an importance tier from a column's inferred type and
// completeness. Sparse or free-text columns land in the supplementary tier.
func SuggestTier(dataType string, completeness float64) int {
	if completeness < 0.5 {
		return 3
	}
	switch dataType {
	case "number":
		return 2
	case "text":
		return 3
	default:
		return 2
	}
}

// Apply folds curated insights into the base: unknown fields gain entries
// seeded from their observed statistics, known fields have their stored
// completeness refreshed. Returns the number of entries touched.
func (b *Base) Apply(in Insights, now time.Time) int {
	if b.FieldDescriptions == nil {
		b.FieldDescriptions = map[string]FieldDescription{}
	}
	stamp := now.Format("2006-01-02")
	touched := 0

	for _, f := range in.NewFields {
		if _, ok := b.FieldDescriptions[f.Name]; ok {
			continue
		}
		purpose := f.SuggestedPurpose
		if purpose == "" {
			purpose = SuggestPurpose(f.Name)
		}
		tier := f.SuggestedTier
		if tier == 0 {
			tier = SuggestTier(f.DataType, f.Completeness)
		}
		b.FieldDescriptions[f.Name] = FieldDescription{
			Description:     purpose,
			BusinessPurpose: purpose,
			Importance:      tier,
			Completeness:    f.Completeness,
			DataType:        f.DataType,
			UniqueValues:    f.UniqueValues,
			SampleValues:    append([]string(nil), f.SampleValues...),
			DiscoveredDate:  stamp,
			LastUpdated:     stamp,
		}
		touched++
	}

	for _, s := range in.UpdatedStatistics {
		d, ok := b.FieldDescriptions[s.Name]
		if !ok {
			continue
		}
		d.Completeness = s.NewCompleteness
		d.LastUpdated = stamp
		b.FieldDescriptions[s.Name] = d
		touched++
	}

	if touched > 0 {
		b.LastUpdated = stamp
	}
	return touched
}
