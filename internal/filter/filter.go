// Package filter reduces a dataset to a bounded, representative row subset:
// threshold pre-filters, a weighted composite score per row, deterministic
// top-N selection, and derived coverage/efficiency quality metrics.
package filter

import (
	"fmt"
	"math"
	"sort"

	"insight/internal/dataset"
)

// Logger is the minimal logging seam. A nil Logger silences the engine.
type Logger interface {
	Printf(format string, v ...any)
}

// ComponentScores are the per-row factors behind a selection score.
type ComponentScores struct {
	Representativeness float64 `json:"representativeness"`
	Priority           float64 `json:"priority"`
	Volume             float64 `json:"volume"`
}

// SelectedRow pairs a retained row with its scores for the audit trail.
type SelectedRow struct {
	Row        dataset.Row     `json:"row"`
	Score      float64         `json:"score"`
	Components ComponentScores `json:"components"`
}

// Result is the filtering stage output. A run that filters everything away
// returns a Result with zero rows and Empty set rather than an error; the
// pipeline still produces a downstream narrative from it.
type Result struct {
	Selected []SelectedRow `json:"selected"`

	OriginalRowCount int  `json:"original_row_count"`
	SelectedRowCount int  `json:"selected_row_count"`
	Empty            bool `json:"empty"`

	SelectionRationale map[string]string `json:"selection_rationale"`
	CoverageScore      float64           `json:"coverage_score"`
	EfficiencyScore    float64           `json:"efficiency_score"`
}

// Rows returns just the selected rows, in selection order.
func (r *Result) Rows() []dataset.Row {
	out := make([]dataset.Row, len(r.Selected))
	for i, s := range r.Selected {
		out[i] = s.Row
	}
	return out
}

// Engine scores and selects rows under a Criteria configuration.
type Engine struct {
	log Logger
}

func NewEngine(log Logger) *Engine {
	return &Engine{log: log}
}

func (e *Engine) logf(format string, v ...any) {
	if e.log != nil {
		e.log.Printf(format, v...)
	}
}

// Filter runs the full pipeline: validate, threshold, score, select, derive
// metrics. Selection is deterministic: identical input and criteria always
// yield the identical row set and ordering.
func (e *Engine) Filter(ds *dataset.Dataset, c Criteria) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		OriginalRowCount:   ds.Len(),
		SelectionRationale: map[string]string{},
	}

	retained := applyThresholds(ds, c)
	if len(retained) == 0 {
		res.Empty = true
		res.SelectionRationale["result"] = "no rows survived threshold filtering"
		res.SelectionRationale["thresholds"] = thresholdSummary(ds, c)
		e.logf("stage=filter dataset=%s original=%d selected=0 empty=true", ds.Name, ds.Len())
		return res, nil
	}

	rep := representativenessScores(retained, ds.Columns)
	prio := minMaxScores(retained, c.PriorityColumn)
	vol := minMaxScores(retained, c.VolumeColumn)

	scored := make([]SelectedRow, len(retained))
	for i, row := range retained {
		comp := ComponentScores{
			Representativeness: rep[i],
			Priority:           prio[i],
			Volume:             vol[i],
		}
		scored[i] = SelectedRow{
			Row: row,
			Score: c.Weights.Representativeness*comp.Representativeness +
				c.Weights.Priority*comp.Priority +
				c.Weights.Volume*comp.Volume,
			Components: comp,
		}
	}

	// Stable sort keeps original row order on score ties.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	n := c.MaxRows
	if n > len(scored) {
		n = len(scored)
	}
	res.Selected = scored[:n]
	res.SelectedRowCount = n

	res.CoverageScore = coverageScore(ds, res.Selected, c)
	res.EfficiencyScore = efficiencyScore(ds, c, n)

	res.SelectionRationale["selection_method"] = fmt.Sprintf(
		"weighted composite score (representativeness %.2f, priority %.2f, volume %.2f), top %d",
		c.Weights.Representativeness, c.Weights.Priority, c.Weights.Volume, n)
	res.SelectionRationale["reduction_ratio"] = fmt.Sprintf("%.3f (%d of %d rows)",
		float64(n)/float64(ds.Len()), n, ds.Len())
	res.SelectionRationale["thresholds"] = thresholdSummary(ds, c)

	e.logf("stage=filter dataset=%s original=%d retained=%d selected=%d coverage=%.3f efficiency=%.3f",
		ds.Name, ds.Len(), len(retained), n, res.CoverageScore, res.EfficiencyScore)

	return res, nil
}

// applyThresholds drops rows below the configured minimums. A threshold only
// applies when its column exists in the dataset; rows whose value does not
// parse fail the threshold.
func applyThresholds(ds *dataset.Dataset, c Criteria) []dataset.Row {
	checkPriority := c.MinPriority > 0 && ds.HasColumn(c.PriorityColumn)
	checkVolume := c.MinVolume > 0 && ds.HasColumn(c.VolumeColumn)

	out := make([]dataset.Row, 0, ds.Len())
	for _, row := range ds.Rows {
		if checkPriority {
			v, ok := row.Float(c.PriorityColumn)
			if !ok || v < c.MinPriority {
				continue
			}
		}
		if checkVolume {
			v, ok := row.Float(c.VolumeColumn)
			if !ok || v < c.MinVolume {
				continue
			}
		}
		out = append(out, row)
	}
	return out
}

func thresholdSummary(ds *dataset.Dataset, c Criteria) string {
	pState, vState := "not present", "not present"
	if ds.HasColumn(c.PriorityColumn) {
		pState = fmt.Sprintf("min %v", c.MinPriority)
	}
	if ds.HasColumn(c.VolumeColumn) {
		vState = fmt.Sprintf("min %v", c.MinVolume)
	}
	return fmt.Sprintf("%s: %s, %s: %s", c.PriorityColumn, pState, c.VolumeColumn, vState)
}

// coverageScore is the mean fraction of each threshold column's full value
// range that the selected rows still span. Columns without a usable range
// in the original data are skipped; with no usable column the score is 0.5.
func coverageScore(ds *dataset.Dataset, selected []SelectedRow, c Criteria) float64 {
	cols := []string{c.PriorityColumn, c.VolumeColumn}
	sum, n := 0.0, 0
	for _, col := range cols {
		if !ds.HasColumn(col) {
			continue
		}
		fullLo, fullHi, ok := columnRange(ds.Rows, col)
		if !ok || fullHi <= fullLo {
			continue
		}
		rows := make([]dataset.Row, len(selected))
		for i, s := range selected {
			rows[i] = s.Row
		}
		selLo, selHi, ok := columnRange(rows, col)
		if !ok {
			continue
		}
		sum += (selHi - selLo) / (fullHi - fullLo)
		n++
	}
	if n == 0 {
		return 0.5
	}
	return clamp01(sum / float64(n))
}

// efficiencyScore blends how much the selection reduced the dataset with how
// selective the thresholds were: half reduction ratio, half the fraction of
// original rows passing all thresholds.
func efficiencyScore(ds *dataset.Dataset, c Criteria, selected int) float64 {
	if ds.Len() == 0 {
		return 0
	}
	reduction := 1 - float64(selected)/float64(ds.Len())
	passing := float64(len(applyThresholds(ds, c))) / float64(ds.Len())
	return clamp01(0.5*reduction + 0.5*passing)
}

func columnRange(rows []dataset.Row, col string) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		v, parsed := r.Float(col)
		if !parsed {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		ok = true
	}
	return lo, hi, ok
}
