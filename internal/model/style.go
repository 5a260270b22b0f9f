package model

import (
	"fmt"
	"strings"
)

// Style holds the presentation attributes of one rendered cell.
// The zero value is the browser default (no inline style).
type Style struct {
	Bold       bool
	Color      string // CSS color name, e.g. "blue", "darkorange"
	Background string // CSS color, e.g. "#ffd34c"
	FontSizePx int
}

// CSS renders the style as an inline CSS declaration list.
// Property order is fixed so repeated renders are byte-identical.
func (s Style) CSS() string {
	var parts []string
	if s.Bold {
		parts = append(parts, "font-weight: bold;")
	}
	if s.Color != "" {
		parts = append(parts, "color: "+s.Color+";")
	}
	if s.Background != "" {
		parts = append(parts, "background-color: "+s.Background+";")
	}
	if s.FontSizePx > 0 {
		parts = append(parts, fmt.Sprintf("font-size: %dpx;", s.FontSizePx))
	}
	return strings.Join(parts, " ")
}

// FormattedCell is the rendering result for one value.
type FormattedCell struct {
	Display string
	Style   Style
}

// TableKind selects the outer layout of a rendered table.
type TableKind int

const (
	// TableRegion is the dashboard block: no header row.
	TableRegion TableKind = iota
	// TableRecords is an equipment list: one header row then one row per record.
	TableRecords
)

// StyledTable is an ordered grid of formatted cells with an optional header row.
type StyledTable struct {
	Kind   TableKind
	Header []FormattedCell
	Rows   [][]FormattedCell
}

// HasHeader reports whether the table renders a header row.
func (t *StyledTable) HasHeader() bool {
	return len(t.Header) > 0
}
