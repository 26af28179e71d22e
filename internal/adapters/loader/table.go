// Package loader reads course, overlap and runner tables and the run
// manifest that ties them together.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/pkg/errkind"
)

// table is a CSV file addressed by lower-cased column name.
type table struct {
	name string
	cols map[string]int
	rows [][]string
}

func readTable(r io.Reader, name string, required ...string) (*table, error) {
	const op = "loader.table"
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errkind.Wrap(op, model.ErrSchema, fmt.Errorf("%s: empty file", name))
	}
	if err != nil {
		return nil, errkind.Wrap(op, model.ErrSchema, fmt.Errorf("%s: %w", name, err))
	}
	t := &table{name: name, cols: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		t.cols[h] = i
	}
	var missing []string
	for _, c := range required {
		if _, ok := t.cols[strings.ToLower(c)]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, errkind.Wrap(op, model.ErrSchema,
			fmt.Errorf("%s: missing columns %s", name, strings.Join(missing, ", ")))
	}
	t.rows, err = cr.ReadAll()
	if err != nil {
		return nil, errkind.Wrap(op, model.ErrSchema, fmt.Errorf("%s: %w", name, err))
	}
	return t, nil
}

func (t *table) has(col string) bool {
	_, ok := t.cols[strings.ToLower(col)]
	return ok
}

// str returns the trimmed cell, or "" when the column is absent.
func (t *table) str(row []string, col string) string {
	i, ok := t.cols[strings.ToLower(col)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// float parses a numeric cell; an empty cell yields def.
func (t *table) float(row []string, line int, col string, def float64) (float64, error) {
	s := t.str(row, col)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errkind.Wrap("loader.table", model.ErrSchema,
			fmt.Errorf("%s line %d: column %s: %q is not a number", t.name, line, col, s))
	}
	return v, nil
}

// required parses a numeric cell that must be present.
func (t *table) required(row []string, line int, col string) (float64, error) {
	if t.str(row, col) == "" {
		return 0, errkind.Wrap("loader.table", model.ErrSchema,
			fmt.Errorf("%s line %d: column %s is empty", t.name, line, col))
	}
	return t.float(row, line, col, 0)
}
