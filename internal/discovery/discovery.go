// Package discovery implements the schema-discovery stage: it reads one or
// more tabular sources, profiles every analyzable column, overlays the
// knowledge base, and emits the field metadata plus learning insights the
// rest of the pipeline runs on.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"math"

	"insight/internal/dataset"
	"insight/internal/fieldmeta"
	"insight/internal/knowledge"
)

// ErrEmptyDataset is returned when the sources yield no rows or no
// analyzable columns. The pipeline treats it as fatal.
var ErrEmptyDataset = errors.New("discovery: empty dataset")

// completenessDriftThreshold is the minimum completeness change before a
// known field is reported as drifted.
const completenessDriftThreshold = 0.1

// confidenceCap keeps sample-based confidence from claiming certainty.
const confidenceCap = 0.95

// Logger is the minimal logging seam. A nil Logger silences the engine.
type Logger interface {
	Printf(format string, v ...any)
}

// Result is the discovery stage output.
type Result struct {
	Dataset *dataset.Dataset
	Fields  *fieldmeta.Store

	// DataQualityScore blends completeness with business-context coverage,
	// clamped to [0,1].
	DataQualityScore float64
	// Confidence blends completeness with knowledge-base coverage, capped
	// at confidenceCap.
	Confidence float64

	KnownFields     []string
	NewFields       []string
	ExcludedColumns []string

	Insights knowledge.Insights
}

// Engine profiles datasets against a knowledge base.
type Engine struct {
	kb  *knowledge.Base
	log Logger
}

// NewEngine returns an engine bound to the given base. A nil base falls back
// to the built-in defaults.
func NewEngine(kb *knowledge.Base, log Logger) *Engine {
	if kb == nil {
		kb = knowledge.Default()
	}
	return &Engine{kb: kb, log: log}
}

func (e *Engine) logf(format string, v ...any) {
	if e.log != nil {
		e.log.Printf(format, v...)
	}
}

// Discover reads every source, merges the rows, and profiles the merged
// dataset. An unreadable source is logged and skipped; the run fails only
// when no source contributes any rows. Excluded columns are dropped before
// profiling but reported in the result.
func (e *Engine) Discover(ctx context.Context, sources ...dataset.Source) (*Result, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources", ErrEmptyDataset)
	}

	merged := &dataset.Dataset{}
	seen := make(map[string]struct{})

	for _, src := range sources {
		ds, err := src.Read(ctx)
		if err != nil {
			e.logf("stage=discovery source=%s skipped err=%v", src.Name(), err)
			continue
		}
		if merged.Name == "" {
			merged.Name = ds.Name
		} else if ds.Name != "" {
			merged.Name += "+" + ds.Name
		}
		for _, col := range ds.Columns {
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			merged.Columns = append(merged.Columns, col)
		}
		// Reindex so ordering stays deterministic across the merge.
		for _, row := range ds.Rows {
			merged.Rows = append(merged.Rows, dataset.Row{
				Index:  len(merged.Rows),
				Values: row.Values,
			})
		}
	}

	if merged.Len() == 0 {
		return nil, fmt.Errorf("%w: all %d sources failed or empty", ErrEmptyDataset, len(sources))
	}
	return e.Profile(merged)
}

// Profile analyzes an already-loaded dataset.
func (e *Engine) Profile(ds *dataset.Dataset) (*Result, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrEmptyDataset)
	}

	res := &Result{Dataset: ds, Fields: fieldmeta.NewStore()}

	var analyzable []string
	for _, col := range ds.Columns {
		if e.kb.Excluded(col) {
			res.ExcludedColumns = append(res.ExcludedColumns, col)
			continue
		}
		analyzable = append(analyzable, col)
	}
	if len(analyzable) == 0 {
		return nil, fmt.Errorf("%w: all %d columns excluded", ErrEmptyDataset, len(ds.Columns))
	}

	stats := make(map[string]*columnStats, len(analyzable))
	for _, col := range analyzable {
		stats[col] = newColumnStats()
	}
	for _, row := range ds.Rows {
		for _, col := range analyzable {
			stats[col].observe(row.Value(col))
		}
	}

	for _, col := range analyzable {
		cs := stats[col]
		m := fieldmeta.FieldMetadata{
			Name:           col,
			DataType:       cs.dataType(),
			ImportanceTier: knowledge.SuggestTier(string(cs.dataType()), cs.completeness()),
			Completeness:   cs.completeness(),
			UniqueValues:   len(cs.distinct),
			SampleValues:   cs.sortedSamples(),
		}

		if e.kb.Enrich(&m) {
			res.KnownFields = append(res.KnownFields, col)
			if desc, ok := e.kb.Describe(col); ok {
				delta := m.Completeness - desc.Completeness
				if math.Abs(delta) > completenessDriftThreshold {
					res.Insights.UpdatedStatistics = append(res.Insights.UpdatedStatistics, knowledge.UpdatedStat{
						Name:            col,
						OldCompleteness: desc.Completeness,
						NewCompleteness: m.Completeness,
					})
				}
			}
		} else {
			res.NewFields = append(res.NewFields, col)
			res.Insights.NewFields = append(res.Insights.NewFields, knowledge.NewField{
				Name:             col,
				DataType:         string(m.DataType),
				Completeness:     m.Completeness,
				UniqueValues:     m.UniqueValues,
				SampleValues:     m.SampleValues,
				SuggestedPurpose: knowledge.SuggestPurpose(col),
				SuggestedTier:    m.ImportanceTier,
			})
		}

		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("discovery: profile %s: %w", col, err)
		}
		res.Fields.Put(m)
	}

	meanCompleteness := res.Fields.MeanCompleteness()
	contextCoverage := res.Fields.ContextCoverage()
	kbCoverage := float64(len(res.KnownFields)) / float64(res.Fields.Len())

	res.DataQualityScore = clamp01(0.7*meanCompleteness + 0.3*contextCoverage)
	res.Confidence = math.Min(confidenceCap, 0.6*meanCompleteness+0.4*kbCoverage)

	e.logf("stage=discovery dataset=%s rows=%d fields=%d known=%d new=%d excluded=%d quality=%.3f confidence=%.3f",
		ds.Name, ds.Len(), res.Fields.Len(), len(res.KnownFields), len(res.NewFields),
		len(res.ExcludedColumns), res.DataQualityScore, res.Confidence)

	return res, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
