// Package selector extracts and cleans the report's data slices from the
// dashboard and raw data worksheets.
package selector

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"production-report/internal/model"
)

// ErrSchemaMismatch is matched by every SchemaMismatchError.
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaMismatchError reports required columns absent from a source table.
type SchemaMismatchError struct {
	Sheet   string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("sheet %q is missing required columns: %s", e.Sheet, strings.Join(e.Missing, ", "))
}

// Is makes errors.Is(err, ErrSchemaMismatch) hold.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// DashboardRegion is the 6x7 block of the dashboard sheet that goes into the report.
var DashboardRegion = model.Region{FirstRow: 4, LastRow: 9, FirstCol: 2, LastCol: 8}

// LargeTonnageSizes lists the size classifications counted as large tonnage.
var LargeTonnageSizes = []string{
	"110T", "130T", "140T", "180T", "160T", "200T",
	"220T", "280T", "300T", "350T", "380T", "420T",
}

// largeScrewPattern matches the screw diameters fitted to large tonnage machines.
var largeScrewPattern = regexp.MustCompile(`^Ø(14|15|18|20|25|30|35)$`)

// RegionCell is one value of a selected region with its source coordinates.
type RegionCell struct {
	Ref   model.CellRef
	Value model.Value
}

// SelectRegion returns the cells of region row by row. Like slicing a data
// frame, the region is truncated where the table is smaller.
func SelectRegion(tbl *model.Table, region model.Region) [][]RegionCell {
	lastRow := min(region.LastRow, tbl.Height()-1)
	lastCol := min(region.LastCol, tbl.Width()-1)

	var out [][]RegionCell
	for r := region.FirstRow; r <= lastRow; r++ {
		row := make([]RegionCell, 0, max(0, lastCol-region.FirstCol+1))
		for c := region.FirstCol; c <= lastCol; c++ {
			ref := model.CellRef{Row: r, Col: c}
			row = append(row, RegionCell{Ref: ref, Value: tbl.Cell(ref)})
		}
		out = append(out, row)
	}
	return out
}

// SelectStopped returns every STOP row projected onto model.StoppedColumns,
// with missing values replaced by "-" and the mold number flattened to one line.
func SelectStopped(raw *model.Table) (*model.EquipmentList, error) {
	idx, err := columnIndexes(raw, model.StoppedColumns)
	if err != nil {
		return nil, err
	}
	statusCol := raw.ColumnIndex(model.ColumnEquipStatus)

	list := &model.EquipmentList{Columns: model.StoppedColumns}
	for _, row := range raw.Rows {
		if !isStopped(row, statusCol) {
			continue
		}
		list.Records = append(list.Records, project(row, model.StoppedColumns, idx, cleanStoppedField))
	}
	return list, nil
}

// SelectLargeTonnage returns STOP rows of large tonnage machines fitted with a
// matching screw, projected onto model.LargeTonnageColumns. The tool number is
// shown as an integer, with zero or missing shown as "-".
func SelectLargeTonnage(raw *model.Table) (*model.EquipmentList, error) {
	idx, err := columnIndexes(raw, model.LargeTonnageColumns)
	if err != nil {
		return nil, err
	}
	statusCol := raw.ColumnIndex(model.ColumnEquipStatus)
	sizeCol := raw.ColumnIndex(model.ColumnSizeMachine)
	screwCol := raw.ColumnIndex(model.ColumnScrew)

	sizes := make(map[string]struct{}, len(LargeTonnageSizes))
	for _, s := range LargeTonnageSizes {
		sizes[s] = struct{}{}
	}

	list := &model.EquipmentList{Columns: model.LargeTonnageColumns}
	for _, row := range raw.Rows {
		if !isStopped(row, statusCol) {
			continue
		}
		if _, ok := sizes[textOf(cellAt(row, sizeCol))]; !ok {
			continue
		}
		if !largeScrewPattern.MatchString(textOf(cellAt(row, screwCol))) {
			continue
		}
		list.Records = append(list.Records, project(row, model.LargeTonnageColumns, idx, cleanLargeTonnageField))
	}
	return list, nil
}

// columnIndexes resolves every required column or fails with a SchemaMismatchError.
func columnIndexes(tbl *model.Table, required []string) ([]int, error) {
	idx := make([]int, len(required))
	var missing []string
	for i, name := range required {
		idx[i] = tbl.ColumnIndex(name)
		if idx[i] < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaMismatchError{Sheet: tbl.Sheet, Missing: missing}
	}
	return idx, nil
}

type fieldCleaner func(column string, v model.Value) string

func project(row []model.Value, columns []string, idx []int, clean fieldCleaner) model.EquipmentRecord {
	rec := model.EquipmentRecord{Values: make([]string, len(columns))}
	for i, col := range columns {
		v := cellAt(row, idx[i])
		rec.Values[i] = clean(col, v)
		if col == model.ColumnProdCategory {
			rec.Category = model.ClassifyStatus(rec.Values[i])
		}
	}
	return rec
}

func cleanStoppedField(column string, v model.Value) string {
	if v.IsEmpty() {
		return model.MissingPlaceholder
	}
	if column == model.ColumnMoldNo {
		return strings.TrimSpace(strings.ReplaceAll(v.String(), "\n", " "))
	}
	return v.String()
}

func cleanLargeTonnageField(column string, v model.Value) string {
	if column == model.ColumnToolingToolNo {
		return toolNumber(v)
	}
	if v.IsEmpty() {
		return model.MissingPlaceholder
	}
	return v.String()
}

// toolNumber renders a tool number as integer text; zero and missing become "-".
// Non-numeric text is kept as written.
func toolNumber(v model.Value) string {
	var n float64
	switch v.Kind {
	case model.KindEmpty:
		return model.MissingPlaceholder
	case model.KindNumber:
		n = v.Num
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return v.Text
		}
		n = f
	}
	i := int64(math.Trunc(n))
	if i == 0 {
		return model.MissingPlaceholder
	}
	return strconv.FormatInt(i, 10)
}

func isStopped(row []model.Value, statusCol int) bool {
	v := cellAt(row, statusCol)
	return v.Kind == model.KindText && v.Text == model.EquipmentStatusStop
}

// textOf is the text form used for pattern filters; it never alters the source.
func textOf(v model.Value) string {
	if v.Kind == model.KindNumber {
		return v.Text
	}
	return v.String()
}

func cellAt(row []model.Value, col int) model.Value {
	if col < 0 || col >= len(row) {
		return model.Empty()
	}
	return row[col]
}
