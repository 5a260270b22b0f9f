// Package excel renders the production status report as an .xlsx workbook.
// It is used for the optional mail attachment and for dry-run previews.
package excel

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"production-report/internal/model"
)

const (
	// Sheet names
	sheetDashboard    = "Dashboard"
	sheetStopped      = "停機總數量"
	sheetLargeTonnage = "大噸數機台開機狀況"

	// Default sheet to remove
	defaultSheet = "Sheet1"

	// Column widths
	defaultColWidth = 15.0
	wideColWidth    = 30.0
)

// cssColors maps the CSS colors used by the renderer to ARGB-less hex.
var cssColors = map[string]string{
	"blue":       "0000FF",
	"darkorange": "FF8C00",
	"dodgerblue": "1E90FF",
	"firebrick":  "B22222",
}

// wideColumns hold free text and get extra width.
var wideColumns = map[string]bool{
	model.ColumnProjectName:   true,
	model.ColumnPartName:      true,
	model.ColumnProdNote:      true,
	model.ColumnRemark:        true,
	model.ColumnCycleDiffNote: true,
}

// Writer implements report.ReportWriter for Excel format.
type Writer struct {
	timezone *time.Location
}

// NewWriter creates a new Excel report writer.
// If timezone is nil, it defaults to Asia/Taipei.
func NewWriter(timezone *time.Location) *Writer {
	if timezone == nil {
		timezone, _ = time.LoadLocation("Asia/Taipei")
	}
	return &Writer{
		timezone: timezone,
	}
}

// Format returns the format identifier for this writer.
func (w *Writer) Format() string {
	return "excel"
}

// Extension returns the file extension of written reports.
func (w *Writer) Extension() string {
	return ".xlsx"
}

// Write generates an Excel report from the document.
func (w *Writer) Write(doc *model.ReportDocument, outputPath string) error {
	if doc == nil {
		return fmt.Errorf("report document is nil")
	}

	// Ensure output path has .xlsx extension
	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath = outputPath + ".xlsx"
	}

	f, err := w.build(doc)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

// WriteTo streams the workbook to out.
func (w *Writer) WriteTo(doc *model.ReportDocument, out io.Writer) error {
	if doc == nil {
		return fmt.Errorf("report document is nil")
	}

	f, err := w.build(doc)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// Bytes returns the workbook contents, ready to attach to a message.
func (w *Writer) Bytes(doc *model.ReportDocument) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.WriteTo(doc, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *Writer) build(doc *model.ReportDocument) (*excelize.File, error) {
	f := excelize.NewFile()
	styles := newStyleCache(f)

	sheets := []struct {
		name  string
		table *model.StyledTable
	}{
		{sheetDashboard, doc.Dashboard},
		{sheetStopped, doc.Stopped},
		{sheetLargeTonnage, doc.LargeTonnage},
	}
	for _, s := range sheets {
		if s.table == nil {
			continue
		}
		if err := w.writeSheet(f, styles, s.name, s.table); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   doc.Title,
		Created: doc.GeneratedAt.In(w.timezone).Format(time.RFC3339),
		Creator: "production-report",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set document properties: %w", err)
	}

	// Keep Sheet1 only when the document had no tables at all
	if len(f.GetSheetList()) > 1 {
		_ = f.DeleteSheet(defaultSheet)
	}
	idx, _ := f.GetSheetIndex(f.GetSheetList()[0])
	f.SetActiveSheet(idx)

	return f, nil
}

func (w *Writer) writeSheet(f *excelize.File, styles *styleCache, sheet string, t *model.StyledTable) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	row := 1
	if t.HasHeader() {
		if err := writeRow(f, styles, sheet, row, t.Header); err != nil {
			return err
		}
		for i, h := range t.Header {
			width := defaultColWidth
			if wideColumns[h.Display] {
				width = wideColWidth
			}
			col, _ := excelize.ColumnNumberToName(i + 1)
			if err := f.SetColWidth(sheet, col, col, width); err != nil {
				return err
			}
		}
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
		row++
	}

	for _, cells := range t.Rows {
		if err := writeRow(f, styles, sheet, row, cells); err != nil {
			return err
		}
		row++
	}
	return nil
}

func writeRow(f *excelize.File, styles *styleCache, sheet string, row int, cells []model.FormattedCell) error {
	for i, c := range cells {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cell, strings.TrimSpace(c.Display)); err != nil {
			return err
		}
		styleID, err := styles.get(c.Style)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, styleID); err != nil {
			return err
		}
	}
	return nil
}

// styleCache registers each distinct cell style with the workbook once.
type styleCache struct {
	f   *excelize.File
	ids map[model.Style]int
}

func newStyleCache(f *excelize.File) *styleCache {
	return &styleCache{f: f, ids: make(map[model.Style]int)}
}

func (c *styleCache) get(s model.Style) (int, error) {
	if id, ok := c.ids[s]; ok {
		return id, nil
	}
	id, err := c.f.NewStyle(toExcelStyle(s))
	if err != nil {
		return 0, err
	}
	c.ids[s] = id
	return id, nil
}

// toExcelStyle converts a rendered cell style. Pixel font sizes become points.
func toExcelStyle(s model.Style) *excelize.Style {
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  s.Bold,
			Color: excelColor(s.Color),
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "D9D9D9", Style: 1},
			{Type: "top", Color: "D9D9D9", Style: 1},
			{Type: "bottom", Color: "D9D9D9", Style: 1},
			{Type: "right", Color: "D9D9D9", Style: 1},
		},
	}
	if s.FontSizePx > 0 {
		style.Font.Size = float64(s.FontSizePx) * 0.75
	}
	if bg := excelColor(s.Background); bg != "" {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Color:   []string{bg},
			Pattern: 1,
		}
	}
	return style
}

// excelColor maps a CSS color name or #rrggbb value to excelize hex.
func excelColor(css string) string {
	if css == "" {
		return ""
	}
	if hex, ok := cssColors[strings.ToLower(css)]; ok {
		return hex
	}
	return strings.ToUpper(strings.TrimPrefix(css, "#"))
}
