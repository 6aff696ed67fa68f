package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// HTMLTableSource extracts rows from the first <table> in an HTML document
// (or the table matched by Selector). Header cells come from <th> elements
// when present, otherwise from the first row.
//
// Some upstream exports still ship Windows-1252 encoded documents; bytes that
// are not valid UTF-8 are decoded through charmap before parsing.
type HTMLTableSource struct {
	Path string
	// Selector narrows the table lookup (e.g. "table#results"). Empty
	// selects the first table in the document.
	Selector string
}

// Name implements Source.
func (s *HTMLTableSource) Name() string { return s.Path }

// Read implements Source.
func (s *HTMLTableSource) Read(ctx context.Context) (*Dataset, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read html source: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var r io.Reader = strings.NewReader(string(b))
	if !utf8.Valid(b) {
		r = transform.NewReader(strings.NewReader(string(b)), charmap.Windows1252.NewDecoder())
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", s.Path, err)
	}

	sel := s.Selector
	if sel == "" {
		sel = "table"
	}
	table := doc.Find(sel).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("parse html %s: no table matches %q", s.Path, sel)
	}

	headers, rows := extractTable(table)
	if len(headers) == 0 {
		return nil, fmt.Errorf("parse html %s: table has no header row", s.Path)
	}
	return fromMatrix(s.Path, headers, rows)
}

// extractTable walks a table selection and returns header names plus aligned
// body rows. Rows with a different cell count than the header are returned
// as-is and dropped later by fromMatrix.
func extractTable(table *goquery.Selection) ([]string, [][]string) {
	var headers []string
	table.Find("tr").First().Find("th").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(cell.Text()))
	})

	headerInFirstRow := len(headers) == 0
	if headerInFirstRow {
		table.Find("tr").First().Find("td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.TrimSpace(cell.Text()))
		})
	}

	var rows [][]string
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return // header row, either th or first-row td
		}
		var rec []string
		tr.Find("td").Each(func(_ int, cell *goquery.Selection) {
			rec = append(rec, strings.TrimSpace(cell.Text()))
		})
		if len(rec) > 0 {
			rows = append(rows, rec)
		}
	})
	return headers, rows
}
