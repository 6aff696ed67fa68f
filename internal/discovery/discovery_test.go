package discovery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"insight/internal/dataset"
	"insight/internal/fieldmeta"
	"insight/internal/knowledge"
)

func rowsFromMatrix(cols []string, values [][]string) []dataset.Row {
	rows := make([]dataset.Row, 0, len(values))
	for i, rec := range values {
		m := make(map[string]string, len(cols))
		for j, c := range cols {
			if j < len(rec) {
				m[c] = rec[j]
			}
		}
		rows = append(rows, dataset.Row{Index: i, Values: m})
	}
	return rows
}

func testDataset() *dataset.Dataset {
	cols := []string{"ROW_ID", "PRODUCT", "PRIORITY_SCORE", "SALES_VOLUME", "REGION", "IS_ACTIVE"}
	return &dataset.Dataset{
		Name:    "retail",
		Columns: cols,
		Rows: rowsFromMatrix(cols, [][]string{
			{"1", "Widget", "850", "1200", "North", "true"},
			{"2", "Gadget", "640", "900", "South", "false"},
			{"3", "Sprocket", "", "1500", "North", "true"},
			{"4", "Flange", "720", "300", "South", "true"},
			{"5", "Bracket", "910", "2200", "North", "false"},
			{"6", "Gasket", "130", "450", "South", "true"},
		}),
	}
}

type stubSource struct {
	name string
	ds   *dataset.Dataset
	err  error
}

func (s stubSource) Name() string { return s.name }
func (s stubSource) Read(context.Context) (*dataset.Dataset, error) {
	return s.ds, s.err
}

func TestProfileInfersTypesAndExcludes(t *testing.T) {
	t.Parallel()

	e := NewEngine(knowledge.Default(), nil)
	res, err := e.Profile(testDataset())
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}

	if len(res.ExcludedColumns) != 1 || res.ExcludedColumns[0] != "ROW_ID" {
		t.Errorf("ExcludedColumns = %v, want [ROW_ID]", res.ExcludedColumns)
	}
	if res.Fields.Len() != 5 {
		t.Fatalf("profiled %d fields, want 5", res.Fields.Len())
	}

	wantTypes := map[string]fieldmeta.DataType{
		"PRODUCT":        fieldmeta.TypeText,
		"PRIORITY_SCORE": fieldmeta.TypeNumber,
		"SALES_VOLUME":   fieldmeta.TypeNumber,
		"REGION":         fieldmeta.TypeCategorical,
		"IS_ACTIVE":      fieldmeta.TypeBoolean,
	}
	for name, want := range wantTypes {
		m, ok := res.Fields.Get(name)
		if !ok {
			t.Fatalf("field %s missing", name)
		}
		if m.DataType != want {
			t.Errorf("%s DataType = %s, want %s", name, m.DataType, want)
		}
	}

	ps, _ := res.Fields.Get("PRIORITY_SCORE")
	if math.Abs(ps.Completeness-5.0/6.0) > 1e-9 {
		t.Errorf("PRIORITY_SCORE completeness = %v, want 5/6", ps.Completeness)
	}
}

func TestProfileScores(t *testing.T) {
	t.Parallel()

	kb := knowledge.Default()
	kb.FieldDescriptions = map[string]knowledge.FieldDescription{
		"PRIORITY_SCORE": {BusinessPurpose: "Urgency ranking", Importance: 1, Completeness: 0.95},
		"SALES_VOLUME":   {BusinessPurpose: "Demand signal", Importance: 1, Completeness: 0.99},
	}

	e := NewEngine(kb, nil)
	res, err := e.Profile(testDataset())
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}

	if len(res.KnownFields) != 2 {
		t.Errorf("KnownFields = %v, want 2 entries", res.KnownFields)
	}
	if len(res.NewFields) != 3 {
		t.Errorf("NewFields = %v, want 3 entries", res.NewFields)
	}

	// 5 fields, completeness {1, 5/6, 1, 1, 1} -> mean 29/30.
	// Context coverage 2/5, kb coverage 2/5.
	meanC := 29.0 / 30.0
	wantQuality := 0.7*meanC + 0.3*0.4
	wantConf := 0.6*meanC + 0.4*0.4
	if math.Abs(res.DataQualityScore-wantQuality) > 1e-9 {
		t.Errorf("DataQualityScore = %v, want %v", res.DataQualityScore, wantQuality)
	}
	if math.Abs(res.Confidence-wantConf) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", res.Confidence, wantConf)
	}
}

func TestConfidenceCapped(t *testing.T) {
	t.Parallel()

	cols := []string{"A"}
	ds := &dataset.Dataset{
		Name:    "tiny",
		Columns: cols,
		Rows:    rowsFromMatrix(cols, [][]string{{"1"}, {"2"}}),
	}
	kb := &knowledge.Base{FieldDescriptions: map[string]knowledge.FieldDescription{
		"A": {BusinessPurpose: "Counter", Importance: 2, Completeness: 1},
	}}

	res, err := NewEngine(kb, nil).Profile(ds)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	// Raw blend is 0.6*1 + 0.4*1 = 1.0; the cap holds it down.
	if res.Confidence != confidenceCap {
		t.Errorf("Confidence = %v, want cap %v", res.Confidence, confidenceCap)
	}
}

func TestProfileLearningInsights(t *testing.T) {
	t.Parallel()

	kb := knowledge.Default()
	kb.FieldDescriptions = map[string]knowledge.FieldDescription{
		// Stored completeness 0.95 vs observed 5/6: drift above threshold.
		"PRIORITY_SCORE": {BusinessPurpose: "Urgency", Importance: 1, Completeness: 0.95},
		// Stored 1.0 vs observed 1.0: no drift.
		"SALES_VOLUME": {BusinessPurpose: "Demand", Importance: 1, Completeness: 1},
	}

	res, err := NewEngine(kb, nil).Profile(testDataset())
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}

	if len(res.Insights.UpdatedStatistics) != 1 {
		t.Fatalf("UpdatedStatistics = %+v, want 1 entry", res.Insights.UpdatedStatistics)
	}
	drift := res.Insights.UpdatedStatistics[0]
	if drift.Name != "PRIORITY_SCORE" || math.Abs(drift.NewCompleteness-5.0/6.0) > 1e-9 {
		t.Errorf("drift = %+v", drift)
	}

	names := map[string]bool{}
	for _, f := range res.Insights.NewFields {
		names[f.Name] = true
		if f.SuggestedPurpose == "" || f.SuggestedTier == 0 {
			t.Errorf("new field %s missing suggestions: %+v", f.Name, f)
		}
	}
	for _, want := range []string{"PRODUCT", "REGION", "IS_ACTIVE"} {
		if !names[want] {
			t.Errorf("new fields missing %s: %v", want, names)
		}
	}
}

func TestProfileEmptyDataset(t *testing.T) {
	t.Parallel()

	if _, err := NewEngine(nil, nil).Profile(&dataset.Dataset{Name: "empty"}); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("Profile(empty) err = %v, want ErrEmptyDataset", err)
	}

	cols := []string{"ROW_ID", "CREATED_AT"}
	allExcluded := &dataset.Dataset{
		Name:    "audit",
		Columns: cols,
		Rows:    rowsFromMatrix(cols, [][]string{{"1", "2024-01-01"}}),
	}
	if _, err := NewEngine(nil, nil).Profile(allExcluded); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("Profile(all excluded) err = %v, want ErrEmptyDataset", err)
	}
}

func TestDiscoverMergesSources(t *testing.T) {
	t.Parallel()

	colsA := []string{"PRODUCT", "SALES_VOLUME"}
	colsB := []string{"PRODUCT", "REGION"}
	a := stubSource{name: "a.csv", ds: &dataset.Dataset{
		Name: "a", Columns: colsA,
		Rows: rowsFromMatrix(colsA, [][]string{{"Widget", "10"}}),
	}}
	b := stubSource{name: "b.csv", ds: &dataset.Dataset{
		Name: "b", Columns: colsB,
		Rows: rowsFromMatrix(colsB, [][]string{{"Gadget", "North"}}),
	}}

	res, err := NewEngine(nil, nil).Discover(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	wantCols := []string{"PRODUCT", "SALES_VOLUME", "REGION"}
	if len(res.Dataset.Columns) != len(wantCols) {
		t.Fatalf("merged columns = %v, want %v", res.Dataset.Columns, wantCols)
	}
	for i, c := range wantCols {
		if res.Dataset.Columns[i] != c {
			t.Errorf("column[%d] = %s, want %s", i, res.Dataset.Columns[i], c)
		}
	}
	if res.Dataset.Len() != 2 {
		t.Errorf("merged rows = %d, want 2", res.Dataset.Len())
	}
	for i, row := range res.Dataset.Rows {
		if row.Index != i {
			t.Errorf("row %d has index %d after merge", i, row.Index)
		}
	}
}

func TestDiscoverSkipsFailingSources(t *testing.T) {
	t.Parallel()

	cols := []string{"PRODUCT"}
	good := stubSource{name: "good.csv", ds: &dataset.Dataset{
		Name: "good", Columns: cols,
		Rows: rowsFromMatrix(cols, [][]string{{"Widget"}}),
	}}
	boom := stubSource{name: "broken.csv", err: fmt.Errorf("disk on fire")}

	res, err := NewEngine(nil, nil).Discover(context.Background(), boom, good)
	if err != nil {
		t.Fatalf("Discover with one failing source: %v", err)
	}
	if res.Dataset.Len() != 1 {
		t.Errorf("rows = %d, want 1", res.Dataset.Len())
	}

	if _, err := NewEngine(nil, nil).Discover(context.Background(), boom); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("all sources failing err = %v, want ErrEmptyDataset", err)
	}
}
