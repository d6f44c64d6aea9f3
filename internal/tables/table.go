// Package tables reads and writes the CSV files exchanged with the data
// preparation scripts and the plotting collaborators. Header names are
// matched case-insensitively with surrounding whitespace trimmed, and
// common alternative spellings are accepted.
package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("missing required column")

	// ErrEmptyTable is returned when a table has a header but no rows.
	ErrEmptyTable = errors.New("table has no rows")

	// ErrBadValue is returned when a cell cannot be parsed.
	ErrBadValue = errors.New("malformed value")
)

// table is a parsed CSV with a normalised header index.
type table struct {
	name   string
	header map[string]int
	rows   [][]string
}

func normalise(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ToLower(strings.TrimSpace(s))
}

// readTable parses r. Lines starting with '#' are comments.
func readTable(r io.Reader, name string) (*table, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: reading csv: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyTable)
	}

	t := &table{name: name, header: make(map[string]int, len(records[0]))}
	for i, h := range records[0] {
		key := normalise(h)
		if _, dup := t.header[key]; !dup {
			t.header[key] = i
		}
	}
	for _, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	if len(t.rows) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyTable)
	}
	return t, nil
}

// column returns the index of the first of names present in the header.
func (t *table) column(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := t.header[normalise(n)]; ok {
			return i, true
		}
	}
	return -1, false
}

// require is column with ErrMissingColumn when none of names is present.
func (t *table) require(names ...string) (int, error) {
	i, ok := t.column(names...)
	if !ok {
		return -1, fmt.Errorf("%s: %w %q", t.name, ErrMissingColumn, names[0])
	}
	return i, nil
}

// cell returns the trimmed value at col, or "" when the row is short.
func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// isNull reports whether a cell holds no value.
func isNull(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none", "n/a":
		return true
	}
	return false
}

// float parses an optional number. ok is false for null cells.
func (t *table) float(row []string, col int, line int) (v float64, ok bool, err error) {
	s := cell(row, col)
	if isNull(s) {
		return math.NaN(), false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s line %d: %w %q", t.name, line, ErrBadValue, s)
	}
	return v, true, nil
}

// year parses a required integer year. Values written as floats ("2024.0")
// are accepted when integral.
func (t *table) year(row []string, col int, line int) (int, error) {
	s := cell(row, col)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%s line %d: %w year %q", t.name, line, ErrBadValue, s)
	}
	return int(f), nil
}

// country returns the required country name of a row.
func (t *table) country(row []string, col int, line int) (string, error) {
	s := cell(row, col)
	if s == "" {
		return "", fmt.Errorf("%s line %d: %w empty country", t.name, line, ErrBadValue)
	}
	return s, nil
}

// openFile opens path for one of the Read* functions.
func openFile(path string, read func(io.Reader, string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return read(f, path)
}

// formatFloat writes v in its shortest form; non-finite values are empty.
func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatOptional writes a nullable float.
func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
