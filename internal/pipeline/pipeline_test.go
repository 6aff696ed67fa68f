package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"insight/internal/completion"
	"insight/internal/dataset"
	"insight/internal/filter"
	"insight/internal/session"
	"insight/internal/storage"
)

type stubSource struct {
	ds  *dataset.Dataset
	err error
}

func (s stubSource) Name() string { return "stub" }

func (s stubSource) Read(ctx context.Context) (*dataset.Dataset, error) {
	return s.ds, s.err
}

type stubClient struct {
	resp completion.Response
	err  error
}

func (s *stubClient) Complete(ctx context.Context, req completion.Request) (completion.Response, error) {
	if s.err != nil {
		return completion.Response{}, s.err
	}
	return s.resp, nil
}

type memRepo struct {
	ensured bool
	records []storage.Record
	err     error
}

func (m *memRepo) EnsureTable(ctx context.Context) error {
	m.ensured = true
	return m.err
}

func (m *memRepo) InsertRecords(ctx context.Context, records []storage.Record) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.records = append(m.records, records...)
	return int64(len(records)), nil
}

func (m *memRepo) Close() {}

func testSource() stubSource {
	ds := &dataset.Dataset{
		Columns: []string{"PRODUCT", "PRIORITY_SCORE", "SALES_VOLUME", "REGION"},
	}
	rows := [][]string{
		{"Widget A", "900", "5000", "North"},
		{"Widget B", "700", "4200", "South"},
		{"Widget C", "50", "100", "North"},
		{"Widget D", "300", "2500", "East"},
	}
	for i, vals := range rows {
		values := map[string]string{}
		for j, c := range ds.Columns {
			values[c] = vals[j]
		}
		ds.Rows = append(ds.Rows, dataset.Row{Index: i, Values: values})
	}
	return stubSource{ds: ds}
}

func relaxedCriteria() *filter.Criteria {
	c := filter.Default()
	c.MinPriority = 0
	c.MinVolume = 0
	return &c
}

func testStart(t *testing.T) time.Time {
	t.Helper()
	start, err := time.Parse(time.RFC3339, "2026-08-30T14:05:09Z")
	if err != nil {
		t.Fatal(err)
	}
	return start
}

func stageByName(t *testing.T, sess *Session, name string) StageResult {
	t.Helper()
	for _, st := range sess.Stages {
		if st.Stage == name {
			return st
		}
	}
	t.Fatalf("stage %s not recorded in %+v", name, sess.Stages)
	return StageResult{}
}

func TestRunFullPipeline(t *testing.T) {
	t.Parallel()

	r := NewRunner(Options{Criteria: relaxedCriteria()})
	sess := r.Run(context.Background(), "What are the top performing products?", testSource())

	if !sess.Success {
		t.Fatalf("success = false, stages %+v", sess.Stages)
	}
	for _, name := range []string{StageDiscovery, StageClassification, StageFiltering, StageNarrative} {
		if st := stageByName(t, sess, name); st.Status != StatusOK {
			t.Fatalf("stage %s status = %s", name, st.Status)
		}
	}
	if sess.Filtered == nil || sess.Filtered.SelectedRowCount != 4 {
		t.Fatalf("filtered = %+v", sess.Filtered)
	}
	if sess.Output == nil || sess.Output.Source != "local" {
		t.Fatalf("output = %+v", sess.Output)
	}
	if sess.Discovery == nil || sess.Discovery.RowCount != 4 {
		t.Fatalf("discovery summary = %+v", sess.Discovery)
	}
	if !strings.HasPrefix(sess.SessionID, "session_") {
		t.Fatalf("session id = %q", sess.SessionID)
	}
}

func TestRunDiscoveryFailureDegradesRun(t *testing.T) {
	t.Parallel()

	r := NewRunner(Options{})
	sess := r.Run(context.Background(), "What are the top products?",
		stubSource{err: errors.New("connection refused")})

	if sess.Success {
		t.Fatal("success = true, want false")
	}
	if st := stageByName(t, sess, StageDiscovery); st.Status != StatusFailed {
		t.Fatalf("discovery status = %s", st.Status)
	}
	if st := stageByName(t, sess, StageFiltering); st.Status != StatusDegraded {
		t.Fatalf("filtering status = %s", st.Status)
	}
	if sess.Output == nil || !strings.Contains(sess.Output.Summary, "No data available") {
		t.Fatalf("output = %+v", sess.Output)
	}
	joined := strings.Join(sess.Output.Limitations, "\n")
	if !strings.Contains(joined, "stage discovery ran in degraded mode") {
		t.Fatalf("limitations = %v", sess.Output.Limitations)
	}
}

func TestRunInvalidCriteriaFailsFiltering(t *testing.T) {
	t.Parallel()

	bad := filter.Default()
	bad.Weights.Priority = 0.9
	r := NewRunner(Options{Criteria: &bad})
	sess := r.Run(context.Background(), "What are the top products?", testSource())

	if sess.Success {
		t.Fatal("success = true, want false")
	}
	st := stageByName(t, sess, StageFiltering)
	if st.Status != StatusFailed || st.Error == "" {
		t.Fatalf("filtering = %+v", st)
	}
	if sess.Output == nil {
		t.Fatal("narrative must still run")
	}
}

func TestRunWritesArtifacts(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := session.Open(root, testStart(t))
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}

	r := NewRunner(Options{Criteria: relaxedCriteria(), Artifacts: store})
	sess := r.Run(context.Background(), "What are the top performing products?", testSource())

	if sess.SessionID != store.ID() {
		t.Fatalf("session id = %q, want %q", sess.SessionID, store.ID())
	}
	for _, stage := range []string{StageDiscovery, StageClassification, StageFiltering, StageNarrative} {
		p := filepath.Join(store.Dir(), stage+"_"+store.ID()+".json")
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing artifact for %s: %v", stage, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(store.Dir(), "consolidated_results_"+store.ID()+".json"))
	if err != nil {
		t.Fatalf("consolidated artifact: %v", err)
	}
	var decoded Session
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode consolidated: %v", err)
	}
	if decoded.SessionID != sess.SessionID || !decoded.Success {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestRunPersistsSelectedRows(t *testing.T) {
	t.Parallel()

	repo := &memRepo{}
	r := NewRunner(Options{Criteria: relaxedCriteria(), Repo: repo})
	sess := r.Run(context.Background(), "What are the top performing products?", testSource())

	if !repo.ensured {
		t.Fatal("EnsureTable not called")
	}
	if len(repo.records) != sess.Filtered.SelectedRowCount {
		t.Fatalf("records = %d, want %d", len(repo.records), sess.Filtered.SelectedRowCount)
	}
	first := repo.records[0]
	if first.Rank != 1 || first.SessionID != sess.SessionID {
		t.Fatalf("first record = %+v", first)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(first.Payload), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["PRODUCT"] != "Widget A" {
		t.Fatalf("payload = %v", payload)
	}
	if st := stageByName(t, sess, StagePersistence); st.Status != StatusOK {
		t.Fatalf("persistence status = %s", st.Status)
	}
}

func TestRunPersistenceFailureRecorded(t *testing.T) {
	t.Parallel()

	repo := &memRepo{err: errors.New("disk full")}
	r := NewRunner(Options{Criteria: relaxedCriteria(), Repo: repo})
	sess := r.Run(context.Background(), "What are the top performing products?", testSource())

	if sess.Success {
		t.Fatal("success = true, want false")
	}
	if st := stageByName(t, sess, StagePersistence); st.Status != StatusFailed {
		t.Fatalf("persistence status = %s", st.Status)
	}
}

func TestRunAggregatesUsageAndCost(t *testing.T) {
	t.Parallel()

	client := &stubClient{resp: completion.Response{
		Text:  `{"summary":"Widget A leads.","insights":["strong sales"],"recommendations":["promote"],"next_steps":["review"]}`,
		Usage: completion.Usage{InputTokens: 1000, OutputTokens: 500},
	}}
	r := NewRunner(Options{
		Criteria:   relaxedCriteria(),
		Completion: client,
		Model:      "claude-3-5-sonnet",
	})
	sess := r.Run(context.Background(), "What are the top performing products?", testSource())

	if sess.Usage.InputTokens != 1000 || sess.Usage.OutputTokens != 500 {
		t.Fatalf("usage = %+v", sess.Usage)
	}
	if sess.EstimatedCost <= 0 {
		t.Fatalf("cost = %f", sess.EstimatedCost)
	}
	if sess.Output.Source != "completion" {
		t.Fatalf("output source = %q", sess.Output.Source)
	}
}
