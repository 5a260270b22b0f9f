// Package model provides data models for the production status report.
package model

import (
	"math"
	"strconv"
	"strings"
)

// ValueKind classifies a raw cell value.
type ValueKind int

const (
	// KindEmpty marks a missing cell.
	KindEmpty ValueKind = iota
	// KindNumber marks a cell whose raw content parsed as a number.
	KindNumber
	// KindText marks any other non-empty cell.
	KindText
)

// Value is a single scalar read from a worksheet.
type Value struct {
	Kind ValueKind
	Num  float64
	Text string // raw cell text as stored in the workbook
}

// Empty returns the missing-value marker.
func Empty() Value {
	return Value{Kind: KindEmpty}
}

// Number returns a numeric value.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f, Text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Text returns a text value. An empty string is treated as missing.
func Text(s string) Value {
	if s == "" {
		return Empty()
	}
	return Value{Kind: KindText, Text: s}
}

// ParseValue classifies the raw string of a numeric cell: empty strings are
// missing, finite numbers are numbers, anything else is kept as text.
// Cells stored as text must not go through ParseValue; use Text.
func ParseValue(raw string) Value {
	if raw == "" {
		return Empty()
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Value{Kind: KindNumber, Num: f, Text: raw}
	}
	return Value{Kind: KindText, Text: raw}
}

// IsEmpty reports whether the value is missing.
func (v Value) IsEmpty() bool {
	return v.Kind == KindEmpty
}

// String returns the display text of the value. Whole numbers render without
// a fractional part, other numbers in their shortest decimal form.
func (v Value) String() string {
	switch v.Kind {
	case KindEmpty:
		return ""
	case KindNumber:
		if v.Num == 0 {
			return "0"
		}
		if v.Num == math.Trunc(v.Num) {
			return strconv.FormatFloat(v.Num, 'f', 0, 64)
		}
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return v.Text
	}
}

// CellRef addresses a data cell by zero-based row and column index.
// Row 0 is the first row after the header.
type CellRef struct {
	Row int
	Col int
}

// Region is an inclusive rectangle of data cells.
type Region struct {
	FirstRow, LastRow int
	FirstCol, LastCol int
}

// Contains reports whether ref falls inside the region.
func (r Region) Contains(ref CellRef) bool {
	return ref.Row >= r.FirstRow && ref.Row <= r.LastRow &&
		ref.Col >= r.FirstCol && ref.Col <= r.LastCol
}

// Table is a named-column view over one worksheet.
type Table struct {
	Sheet   string
	Columns []string
	Rows    [][]Value
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.Columns)
}

// Height returns the number of data rows.
func (t *Table) Height() int {
	return len(t.Rows)
}

// ColumnIndex returns the index of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at ref. Out of range cells are missing.
func (t *Table) Cell(ref CellRef) Value {
	if ref.Row < 0 || ref.Row >= len(t.Rows) {
		return Empty()
	}
	row := t.Rows[ref.Row]
	if ref.Col < 0 || ref.Col >= len(row) {
		return Empty()
	}
	return row[ref.Col]
}
