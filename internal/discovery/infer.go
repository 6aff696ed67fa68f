package discovery

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"insight/internal/fieldmeta"
)

// columnStats holds the per-column observations inference works from.
type columnStats struct {
	nonEmpty int
	total    int
	distinct map[string]struct{}
	samples  []string

	allNumber bool
	allBool   bool
	allDate   bool
}

func newColumnStats() *columnStats {
	return &columnStats{
		distinct:  make(map[string]struct{}),
		allNumber: true,
		allBool:   true,
		allDate:   true,
	}
}

func (cs *columnStats) observe(raw string) {
	cs.total++
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	cs.nonEmpty++
	cs.distinct[v] = struct{}{}
	if len(cs.samples) < fieldmeta.MaxSampleValues {
		if !containsValue(cs.samples, v) {
			cs.samples = append(cs.samples, v)
		}
	}

	if cs.allNumber {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			cs.allNumber = false
		}
	}
	if cs.allBool {
		if _, ok := parseBoolLoose(v); !ok {
			cs.allBool = false
		}
	}
	if cs.allDate {
		if _, ok := parseDatetimeLoose(v); !ok {
			cs.allDate = false
		}
	}
}

func (cs *columnStats) completeness() float64 {
	if cs.total == 0 {
		return 0
	}
	return float64(cs.nonEmpty) / float64(cs.total)
}

// dataType resolves the observations into one of the five field types.
// Specific types win over text; a column with no values at all stays text.
func (cs *columnStats) dataType() fieldmeta.DataType {
	if cs.nonEmpty == 0 {
		return fieldmeta.TypeText
	}
	// Number wins over boolean so 0/1 columns stay numeric.
	switch {
	case cs.allNumber:
		return fieldmeta.TypeNumber
	case cs.allBool:
		return fieldmeta.TypeBoolean
	case cs.allDate:
		return fieldmeta.TypeDatetime
	}
	// Categorical when the distinct count stays under half the row count.
	if float64(len(cs.distinct)) < 0.5*float64(cs.total) {
		return fieldmeta.TypeCategorical
	}
	return fieldmeta.TypeText
}

func (cs *columnStats) sortedSamples() []string {
	out := append([]string(nil), cs.samples...)
	sort.Strings(out)
	return out
}

func containsValue(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

var datetimeLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
}

func parseDatetimeLoose(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range datetimeLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
