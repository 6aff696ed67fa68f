package filter

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeights is returned when selection weights do not sum to 1.0.
var ErrInvalidWeights = errors.New("filter: selection weights must sum to 1.0")

// weightTolerance is the floating tolerance on the weight-sum check.
const weightTolerance = 1e-6

// Weights are the per-factor contributions to the composite selection score.
type Weights struct {
	Representativeness float64 `json:"representativeness"`
	Priority           float64 `json:"priority"`
	Volume             float64 `json:"volume"`
}

// Sum returns the total weight mass.
func (w Weights) Sum() float64 {
	return w.Representativeness + w.Priority + w.Volume
}

// Criteria configures one filtering run. Thresholds apply only when the
// named column exists in the data; a missing column simply skips that
// threshold.
type Criteria struct {
	MaxRows int     `json:"max_rows"`
	Weights Weights `json:"weights"`

	PriorityColumn string  `json:"priority_column"`
	VolumeColumn   string  `json:"volume_column"`
	MinPriority    float64 `json:"min_priority"`
	MinVolume      float64 `json:"min_volume"`

	GeographicDiversity bool `json:"geographic_diversity"`
}

// Default returns the baseline criteria shared by every question type.
func Default() Criteria {
	return Criteria{
		MaxRows: 25,
		Weights: Weights{
			Representativeness: 0.4,
			Priority:           0.4,
			Volume:             0.2,
		},
		PriorityColumn:      "PRIORITY_SCORE",
		VolumeColumn:        "SALES_VOLUME",
		MinPriority:         100,
		MinVolume:           500,
		GeographicDiversity: true,
	}
}

// Validate rejects criteria that would make scoring undefined. It must be
// called before any scoring begins.
func (c Criteria) Validate() error {
	if c.MaxRows <= 0 {
		return fmt.Errorf("filter: max_rows must be positive, got %d", c.MaxRows)
	}
	for _, w := range []float64{c.Weights.Representativeness, c.Weights.Priority, c.Weights.Volume} {
		if w < 0 {
			return fmt.Errorf("%w: negative weight %v", ErrInvalidWeights, w)
		}
	}
	if math.Abs(c.Weights.Sum()-1) > weightTolerance {
		return fmt.Errorf("%w: got %v", ErrInvalidWeights, c.Weights.Sum())
	}
	return nil
}
