// Package render turns selected worksheet data into styled tables: it formats
// single cell values and applies the report's fixed highlighting rules.
package render

import (
	"math"
	"strconv"
	"strings"

	"production-report/internal/model"
)

// UtilizationOverrideRegion holds the machine utilization cells that store a
// ratio capped at 1; a value of exactly 1 there is shown as "100%".
var UtilizationOverrideRegion = model.Region{FirstRow: 5, LastRow: 9, FirstCol: 3, LastCol: 3}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// CollapseLineBreaks replaces every line break with a single space.
func CollapseLineBreaks(s string) string {
	return lineBreaks.Replace(s)
}

// FormatCell returns the display string for v at ref.
//
//   - missing values render as a single space
//   - text that does not parse as a number is returned with line breaks collapsed
//   - 1 inside UtilizationOverrideRegion renders as "100%"
//   - whole numbers render as integers, anything else as a percentage with two decimals
func FormatCell(v model.Value, ref model.CellRef) string {
	if v.IsEmpty() {
		return " "
	}
	f, ok := numeric(v)
	if !ok {
		return CollapseLineBreaks(v.Text)
	}
	if f == 1 && UtilizationOverrideRegion.Contains(ref) {
		return "100%"
	}
	if isWhole(f) {
		return integerText(f)
	}
	return percentText(f)
}

// numeric parses v as a number. Text cells are parsed too, so numbers stored
// as text format the same way as real numbers.
func numeric(v model.Value) (float64, bool) {
	switch v.Kind {
	case model.KindNumber:
		return v.Num, true
	case model.KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func isWhole(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
}

func integerText(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', 0, 64)
}

// percentText scales f by 100 and keeps two decimals: 0.8345 -> "83.45%".
func percentText(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan%"
	case math.IsInf(f, 1):
		return "inf%"
	case math.IsInf(f, -1):
		return "-inf%"
	}
	return strconv.FormatFloat(f*100, 'f', 2, 64) + "%"
}
