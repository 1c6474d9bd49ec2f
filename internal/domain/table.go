package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Table is a flat tabular file held in memory. Cells are kept as text so columns the pipeline
// does not own survive a rewrite untouched.
type Table struct {
	Header []string
	Rows   [][]string
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Index returns the position of the named column or -1.
func (t *Table) Index(column string) int {
	for i, h := range t.Header {
		if h == column {
			return i
		}
	}
	return -1
}

// EnsureColumn returns the index of column, appending an empty column when it does not exist yet.
func (t *Table) EnsureColumn(column string) int {
	if idx := t.Index(column); idx >= 0 {
		return idx
	}
	t.Header = append(t.Header, column)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	return len(t.Header) - 1
}

// Value returns the cell of row at column, or "" when the row is short.
func (t *Table) Value(row, column int) string {
	if column < 0 || column >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][column]
}

// Set writes a cell, padding short rows.
func (t *Table) Set(row, column int, value string) {
	for len(t.Rows[row]) <= column {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][column] = value
}

// RowsByAthlete returns the indices of every row whose Athlete ID equals id.
func (t *Table) RowsByAthlete(id int64) ([]int, error) {
	col := t.Index(ColAthleteID)
	if col < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnMissing, ColAthleteID)
	}
	var rows []int
	for i := range t.Rows {
		if parsed, ok := ParseIntCell(t.Value(i, col)); ok && parsed == id {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

// ParseIntCell parses integer text, accepting the float form ("45.0") pandas writes for
// integer columns that once held a missing value.
func ParseIntCell(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > 9e18 {
		return 0, false
	}
	return int64(f), true
}
