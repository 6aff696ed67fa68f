package filter

import (
	"math"

	"insight/internal/dataset"
)

// minMaxScores normalizes a column to [0,1] across the given rows. Rows
// whose value does not parse get the neutral 0.5. When the column range is
// degenerate (max == min, a single row, or a single distinct value) every
// row scores exactly 0.5.
func minMaxScores(rows []dataset.Row, col string) []float64 {
	out := make([]float64, len(rows))
	for i := range out {
		out[i] = 0.5
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	vals := make([]float64, len(rows))
	ok := make([]bool, len(rows))
	for i, r := range rows {
		v, parsed := r.Float(col)
		if !parsed {
			continue
		}
		vals[i], ok[i] = v, true
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return out
	}

	span := hi - lo
	for i := range rows {
		if ok[i] {
			out[i] = (vals[i] - lo) / span
		}
	}
	return out
}

// representativenessScores measures how close each row sits to the centroid
// of the numeric feature space: 1 at the centroid, approaching 0 at the far
// corners. The score is a deterministic function of the row's features.
// With no usable numeric features every row gets 0.5.
func representativenessScores(rows []dataset.Row, columns []string) []float64 {
	out := make([]float64, len(rows))
	for i := range out {
		out[i] = 0.5
	}

	var features [][]float64
	for _, col := range columns {
		scaled, usable := scaledNumericFeature(rows, col)
		if usable {
			features = append(features, scaled)
		}
	}
	if len(features) == 0 {
		return out
	}

	centroid := make([]float64, len(features))
	for j, f := range features {
		sum := 0.0
		for _, v := range f {
			sum += v
		}
		centroid[j] = sum / float64(len(rows))
	}

	for i := range rows {
		sum := 0.0
		for j, f := range features {
			d := f[i] - centroid[j]
			sum += d * d
		}
		dist := math.Sqrt(sum / float64(len(features)))
		out[i] = clamp01(1 - dist)
	}
	return out
}

// scaledNumericFeature min-max scales one column over the rows. A column is
// usable when every non-empty value parses and at least one value parses.
// Missing values sit at the column mean so they add no distance.
func scaledNumericFeature(rows []dataset.Row, col string) ([]float64, bool) {
	vals := make([]float64, len(rows))
	ok := make([]bool, len(rows))
	seen := 0
	for i, r := range rows {
		raw := r.Value(col)
		if raw == "" {
			continue
		}
		v, parsed := r.Float(col)
		if !parsed {
			return nil, false
		}
		vals[i], ok[i] = v, true
		seen++
	}
	if seen == 0 {
		return nil, false
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range rows {
		if !ok[i] {
			continue
		}
		if vals[i] < lo {
			lo = vals[i]
		}
		if vals[i] > hi {
			hi = vals[i]
		}
	}

	scaled := make([]float64, len(rows))
	if hi <= lo {
		for i := range scaled {
			scaled[i] = 0.5
		}
		return scaled, true
	}
	span := hi - lo
	sum, n := 0.0, 0
	for i := range rows {
		if ok[i] {
			scaled[i] = (vals[i] - lo) / span
			sum += scaled[i]
			n++
		}
	}
	mean := sum / float64(n)
	for i := range rows {
		if !ok[i] {
			scaled[i] = mean
		}
	}
	return scaled, true
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
