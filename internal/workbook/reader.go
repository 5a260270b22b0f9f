// Package workbook reads worksheets of the shared status workbook into tables.
package workbook

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"production-report/internal/model"
)

// Source is an open workbook used for read-only table extraction.
type Source struct {
	path string
	file *excelize.File
}

// Open opens the workbook at path for reading.
func Open(path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("workbook path is required")
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &Source{path: path, file: f}, nil
}

// Close releases the underlying file.
func (s *Source) Close() error {
	return s.file.Close()
}

// Path returns the workbook path.
func (s *Source) Path() string {
	return s.path
}

// ReadSheet reads a whole worksheet as a table. The first skipRows rows are
// discarded, the next row becomes the column header and every following row
// is a data row. Cell values are read raw, without number formats applied.
// Only numeric cells become numbers; text cells stay text even when they
// look like a number ("007", "1E3").
func (s *Source) ReadSheet(sheet string, skipRows int) (*model.Table, error) {
	rows, err := s.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	var typeErr error
	value := func(row, col int, raw string) model.Value {
		if raw == "" || typeErr != nil {
			return model.Empty()
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row+1)
		if err != nil {
			typeErr = err
			return model.Empty()
		}
		typ, err := s.file.GetCellType(sheet, cell)
		if err != nil {
			typeErr = fmt.Errorf("failed to read type of %s!%s: %w", sheet, cell, err)
			return model.Empty()
		}
		return cellValue(raw, typ)
	}

	tbl := buildTable(sheet, rows, skipRows, value)
	if typeErr != nil {
		return nil, typeErr
	}
	return tbl, nil
}

// cellFunc turns the raw string of the cell at (row, col), both zero-based
// sheet coordinates, into a typed value.
type cellFunc func(row, col int, raw string) model.Value

// cellValue types a raw cell string by its stored cell type.
func cellValue(raw string, typ excelize.CellType) model.Value {
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		return model.ParseValue(raw)
	case excelize.CellTypeBool:
		switch raw {
		case "1":
			return model.Text("TRUE")
		case "0":
			return model.Text("FALSE")
		}
	}
	return model.Text(raw)
}

// buildTable converts raw rows into a table with normalized column names.
func buildTable(sheet string, rows [][]string, skipRows int, value cellFunc) *model.Table {
	tbl := &model.Table{Sheet: sheet}
	if skipRows < 0 {
		skipRows = 0
	}
	if skipRows >= len(rows) {
		return tbl
	}
	rows = trimTrailingBlankRows(rows[skipRows:])
	if len(rows) == 0 {
		return tbl
	}

	// sheet row of data[0]
	first := skipRows + 1
	header, data := rows[0], rows[1:]
	width := len(header)
	for _, r := range data {
		if len(r) > width {
			width = len(r)
		}
	}

	tbl.Columns = columnNames(header, width)
	tbl.Rows = make([][]model.Value, 0, len(data))
	for n, r := range data {
		values := make([]model.Value, width)
		for i := range values {
			if i < len(r) {
				values[i] = value(first+n, i, r[i])
			}
		}
		tbl.Rows = append(tbl.Rows, values)
	}
	return tbl
}

// columnNames names every column: blank headers become "Unnamed: <i>" and
// repeated names get ".1", ".2", ... suffixes in order of appearance.
func columnNames(header []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = header[i]
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			candidate := name
			for {
				n++
				candidate = name + "." + strconv.Itoa(n)
				if _, taken := seen[candidate]; !taken {
					break
				}
			}
			seen[name] = n
			name = candidate
		}
		seen[name] = 0
		names[i] = name
	}
	return names
}

func trimTrailingBlankRows(rows [][]string) [][]string {
	for len(rows) > 0 && isBlankRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
