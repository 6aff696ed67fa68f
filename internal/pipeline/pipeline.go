// Package pipeline runs the four analysis stages in sequence: schema
// discovery, question classification, intelligent filtering, and narrative
// generation. A stage failure degrades the run instead of aborting it; the
// final narrative names every degraded stage in its limitations.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"insight/internal/completion"
	"insight/internal/dataset"
	"insight/internal/discovery"
	"insight/internal/fieldmeta"
	"insight/internal/filter"
	"insight/internal/knowledge"
	"insight/internal/metrics"
	"insight/internal/narrative"
	"insight/internal/question"
	"insight/internal/session"
	"insight/internal/storage"
)

// Stage status values recorded per stage.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
)

// Stage names, in execution order.
const (
	StageDiscovery      = "discovery"
	StageClassification = "classification"
	StageFiltering      = "filtering"
	StageNarrative      = "narrative"
	StagePersistence    = "persistence"
)

// Logger is the minimal logging seam. A nil Logger silences the runner.
type Logger interface {
	Printf(format string, v ...any)
}

// Options wires the runner's collaborators. Everything except the sources
// and question is optional; absent pieces degrade the matching stage.
type Options struct {
	Knowledge  *knowledge.Base
	Completion completion.Client
	Model      string

	// Artifacts receives per-stage JSON artifacts when non-nil.
	Artifacts *session.Store
	// Repo persists the selected rows when non-nil.
	Repo storage.Repository

	// Criteria overrides the classification-derived criteria when non-nil.
	Criteria *filter.Criteria

	Log Logger
}

// StageResult records one stage's outcome.
type StageResult struct {
	Stage           string  `json:"stage"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

// DiscoverySummary is the artifact-friendly view of a discovery result.
type DiscoverySummary struct {
	RowCount         int                                `json:"row_count"`
	DataQualityScore float64                            `json:"data_quality_score"`
	Confidence       float64                            `json:"confidence"`
	KnownFields      []string                           `json:"known_fields"`
	NewFields        []string                           `json:"new_fields"`
	ExcludedColumns  []string                           `json:"excluded_columns"`
	Fields           map[string]fieldmeta.FieldMetadata `json:"fields"`
}

// Session is the consolidated envelope for one pipeline run.
type Session struct {
	SessionID   string    `json:"session_id"`
	Question    string    `json:"question"`
	Model       string    `json:"model,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	Stages []StageResult `json:"stages"`

	Discovery *DiscoverySummary  `json:"discovery,omitempty"`
	Analysis  question.Analysis  `json:"analysis"`
	Filtered  *filter.Result     `json:"filtered,omitempty"`
	Output    *narrative.Output  `json:"output,omitempty"`
	Insights  knowledge.Insights `json:"learning_insights,omitempty"`

	Usage         completion.Usage `json:"usage"`
	EstimatedCost float64          `json:"estimated_cost_usd"`

	// Success is true when no stage failed outright.
	Success bool `json:"success"`
}

// Degraded returns the names of stages that did not finish with StatusOK.
func (s *Session) Degraded() []string {
	var out []string
	for _, st := range s.Stages {
		if st.Status != StatusOK {
			out = append(out, st.Stage)
		}
	}
	return out
}

// Runner executes pipeline sessions.
type Runner struct {
	opts Options
	now  func() time.Time
}

func NewRunner(opts Options) *Runner {
	return &Runner{opts: opts, now: time.Now}
}

func (r *Runner) logf(format string, v ...any) {
	if r.opts.Log != nil {
		r.opts.Log.Printf(format, v...)
	}
}

// Run executes the stages strictly in order and always returns a Session,
// even when every stage degraded.
func (r *Runner) Run(ctx context.Context, q string, sources ...dataset.Source) *Session {
	start := r.now()
	sess := &Session{
		SessionID: session.NewID(start),
		Question:  q,
		Model:     r.opts.Model,
		StartedAt: start,
		Success:   true,
	}
	if r.opts.Artifacts != nil {
		sess.SessionID = r.opts.Artifacts.ID()
	}

	disc := r.runDiscovery(ctx, sess, sources)
	r.runClassification(sess, q)
	filtered := r.runFiltering(sess, disc)
	r.runNarrative(ctx, sess, disc, filtered)
	r.runPersistence(ctx, sess, filtered)

	sess.CompletedAt = r.now()
	sess.EstimatedCost = completion.EstimateCost(r.opts.Model, sess.Usage)
	metrics.IncCounter("pipeline_tokens_total", float64(sess.Usage.InputTokens), metrics.Labels{"kind": "input"})
	metrics.IncCounter("pipeline_tokens_total", float64(sess.Usage.OutputTokens), metrics.Labels{"kind": "output"})

	if r.opts.Artifacts != nil {
		if _, err := r.opts.Artifacts.WriteConsolidated(sess); err != nil {
			r.logf("session=%s consolidated artifact failed err=%v", sess.SessionID, err)
		}
	}
	r.logf("session=%s success=%t cost=%.6f duration=%s",
		sess.SessionID, sess.Success, sess.EstimatedCost, sess.CompletedAt.Sub(sess.StartedAt))
	return sess
}

func (r *Runner) finishStage(sess *Session, stage, status string, started time.Time, err error) {
	res := StageResult{
		Stage:           stage,
		Status:          status,
		DurationSeconds: r.now().Sub(started).Seconds(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	if status == StatusFailed {
		sess.Success = false
	}
	sess.Stages = append(sess.Stages, res)

	metrics.IncCounter("pipeline_stage_total", 1, metrics.Labels{"stage": stage, "status": status})
	metrics.ObserveHistogram("pipeline_stage_duration_seconds", res.DurationSeconds, metrics.Labels{"stage": stage})
	r.logf("stage=%s status=%s duration=%.3fs", stage, status, res.DurationSeconds)
}

func (r *Runner) writeArtifact(sess *Session, stage string, v any) {
	if r.opts.Artifacts == nil {
		return
	}
	if _, err := r.opts.Artifacts.WriteStage(stage, v); err != nil {
		r.logf("session=%s stage=%s artifact failed err=%v", sess.SessionID, stage, err)
	}
}

func (r *Runner) runDiscovery(ctx context.Context, sess *Session, sources []dataset.Source) *discovery.Result {
	started := r.now()
	eng := discovery.NewEngine(r.opts.Knowledge, r.opts.Log)
	res, err := eng.Discover(ctx, sources...)
	if err != nil {
		r.finishStage(sess, StageDiscovery, StatusFailed, started, err)
		return nil
	}

	sess.Discovery = &DiscoverySummary{
		RowCount:         res.Dataset.Len(),
		DataQualityScore: res.DataQualityScore,
		Confidence:       res.Confidence,
		KnownFields:      res.KnownFields,
		NewFields:        res.NewFields,
		ExcludedColumns:  res.ExcludedColumns,
		Fields:           res.Fields.All(),
	}
	sess.Insights = res.Insights
	r.finishStage(sess, StageDiscovery, StatusOK, started, nil)
	r.writeArtifact(sess, StageDiscovery, sess.Discovery)
	if !res.Insights.Empty() {
		r.writeArtifact(sess, "learning_insights", res.Insights)
	}
	return res
}

func (r *Runner) runClassification(sess *Session, q string) {
	started := r.now()
	sess.Analysis = question.Classify(q)
	r.finishStage(sess, StageClassification, StatusOK, started, nil)
	r.writeArtifact(sess, StageClassification, sess.Analysis)
}

func (r *Runner) runFiltering(sess *Session, disc *discovery.Result) *filter.Result {
	started := r.now()
	if disc == nil {
		r.finishStage(sess, StageFiltering, StatusDegraded, started, nil)
		return nil
	}

	criteria := sess.Analysis.Criteria
	if r.opts.Criteria != nil {
		criteria = *r.opts.Criteria
	}

	res, err := filter.NewEngine(r.opts.Log).Filter(disc.Dataset, criteria)
	if err != nil {
		r.finishStage(sess, StageFiltering, StatusFailed, started, err)
		return nil
	}

	sess.Filtered = res
	metrics.IncCounter("pipeline_rows_total", float64(res.OriginalRowCount), metrics.Labels{"kind": "original"})
	metrics.IncCounter("pipeline_rows_total", float64(res.SelectedRowCount), metrics.Labels{"kind": "selected"})
	r.finishStage(sess, StageFiltering, StatusOK, started, nil)
	r.writeArtifact(sess, StageFiltering, res)
	return res
}

func (r *Runner) runNarrative(ctx context.Context, sess *Session, disc *discovery.Result, filtered *filter.Result) {
	started := r.now()
	gen := narrative.NewGenerator(r.opts.Completion, r.opts.Log)
	out := gen.Generate(ctx, narrative.Input{
		Question:       sess.Analysis,
		Discovery:      disc,
		Filtered:       filtered,
		DegradedStages: sess.Degraded(),
	})
	sess.Output = out
	sess.Usage = sess.Usage.Add(out.Usage)
	r.finishStage(sess, StageNarrative, StatusOK, started, nil)
	r.writeArtifact(sess, StageNarrative, out)
}

func (r *Runner) runPersistence(ctx context.Context, sess *Session, filtered *filter.Result) {
	if r.opts.Repo == nil {
		return
	}
	started := r.now()
	if filtered == nil || len(filtered.Selected) == 0 {
		r.finishStage(sess, StagePersistence, StatusOK, started, nil)
		return
	}

	records := make([]storage.Record, 0, len(filtered.Selected))
	for i, sel := range filtered.Selected {
		payload, err := json.Marshal(sel.Row.Values)
		if err != nil {
			r.finishStage(sess, StagePersistence, StatusFailed, started, err)
			return
		}
		records = append(records, storage.Record{
			SessionID: sess.SessionID,
			Rank:      i + 1,
			RowIndex:  sel.Row.Index,
			Score:     sel.Score,
			Payload:   string(payload),
		})
	}

	if err := r.opts.Repo.EnsureTable(ctx); err != nil {
		r.finishStage(sess, StagePersistence, StatusFailed, started, err)
		return
	}
	n, err := r.opts.Repo.InsertRecords(ctx, records)
	if err != nil {
		r.finishStage(sess, StagePersistence, StatusFailed, started, err)
		return
	}
	r.logf("stage=persistence inserted=%d", n)
	r.finishStage(sess, StagePersistence, StatusOK, started, nil)
}
