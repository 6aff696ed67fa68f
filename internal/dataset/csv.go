package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVSource reads a delimited file from the local filesystem.
type CSVSource struct {
	Path string
	// Delimiter defaults to ',' when zero.
	Delimiter rune
}

// Name implements Source.
func (s *CSVSource) Name() string { return s.Path }

// Read implements Source. Parsing is lenient: quotes are lazy and records
// with the wrong field count are dropped rather than failing the read.
func (s *CSVSource) Read(ctx context.Context) (*Dataset, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read csv source: %w", err)
	}
	delim := s.Delimiter
	if delim == 0 {
		delim = ','
	}
	headers, rows, err := parseCSV(ctx, b, delim)
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", s.Path, err)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("parse csv %s: empty file", s.Path)
	}
	return fromMatrix(s.Path, headers, rows)
}

// parseCSV parses CSV bytes into a header row and aligned data rows.
// A UTF-8 BOM on the first header cell is stripped.
func parseCSV(ctx context.Context, data []byte, delimiter rune) ([]string, [][]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.FieldsPerRecord = -1 // validated manually against the header width
	r.LazyQuotes = true

	headers, err := r.Read()
	if err != nil {
		return nil, nil, err
	}
	for i := range headers {
		h := strings.TrimSpace(headers[i])
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		headers[i] = h
	}

	rows := make([][]string, 0, 1024)
	for {
		select {
		case <-ctx.Done():
			return headers, rows, ctx.Err()
		default:
		}

		rec, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return headers, rows, err
		}
		if len(rec) != len(headers) {
			continue
		}
		out := make([]string, len(rec))
		copy(out, rec)
		rows = append(rows, out)
	}

	return headers, rows, nil
}
