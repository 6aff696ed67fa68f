// Package dataset provides the in-memory tabular model shared by the
// pipeline stages, plus bounded readers for CSV files and HTML tables.
//
// Design constraints:
//   - Reading is best-effort: misaligned rows are skipped, never fatal.
//   - Cell values stay as trimmed strings; numeric interpretation happens in
//     the consumers (discovery inference, filter scoring).
//   - Rows keep their original position so selections stay traceable.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// Row is one record: the original zero-based position in the source plus a
// field-name-keyed value map. Empty cells are stored as "".
type Row struct {
	Index  int               `json:"index"`
	Values map[string]string `json:"values"`
}

// Value returns the trimmed cell value for column name, "" if absent.
func (r Row) Value(name string) string {
	return r.Values[name]
}

// Float parses the cell value for column name as a float64.
func (r Row) Float(name string) (float64, bool) {
	v := strings.TrimSpace(r.Values[name])
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Dataset is an ordered collection of rows with a stable column order.
type Dataset struct {
	// Name identifies the source (path or label) for logs and artifacts.
	Name string `json:"name"`
	// Columns is the header order as observed in the source.
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len returns the row count.
func (d *Dataset) Len() int { return len(d.Rows) }

// HasColumn reports whether the dataset contains the named column.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns all values of the named column in row order. Missing cells
// appear as "".
func (d *Dataset) Column(name string) []string {
	out := make([]string, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r.Values[name]
	}
	return out
}

// NumericColumn parses the named column as floats, returning the values and
// a parallel mask of which rows parsed. Blank cells are treated as missing.
func (d *Dataset) NumericColumn(name string) ([]float64, []bool) {
	vals := make([]float64, len(d.Rows))
	ok := make([]bool, len(d.Rows))
	for i, r := range d.Rows {
		vals[i], ok[i] = r.Float(name)
	}
	return vals, ok
}

// fromMatrix builds a Dataset out of a header row and aligned string rows.
// Rows whose width differs from the header are skipped (best-effort probing
// semantics); the original index still counts skipped rows so positions match
// the source file.
func fromMatrix(name string, headers []string, rows [][]string) (*Dataset, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("dataset %s: no header row", name)
	}
	cols := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = strings.TrimSpace(h)
	}

	d := &Dataset{Name: name, Columns: cols}
	for i, rec := range rows {
		if len(rec) != len(cols) {
			continue
		}
		values := make(map[string]string, len(cols))
		for j, c := range cols {
			values[c] = strings.TrimSpace(rec[j])
		}
		d.Rows = append(d.Rows, Row{Index: i, Values: values})
	}
	return d, nil
}
