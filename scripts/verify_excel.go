//go:build ignore
// +build ignore

// This script generates a sample status workbook and renders the report
// previews from it for manual verification, without a spreadsheet engine.
// Run with: go run scripts/verify_excel.go
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"production-report/internal/model"
	"production-report/internal/render"
	"production-report/internal/report"
	"production-report/internal/selector"
	"production-report/internal/workbook"
)

func main() {
	workbookPath := filepath.Join(".", "sample_production_status.xlsx")
	if err := writeSampleWorkbook(workbookPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating workbook: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Sample workbook: %s\n", workbookPath)

	src, err := workbook.Open(workbookPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening workbook: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	dashboard, err := src.ReadSheet("Dashboard", 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading Dashboard: %v\n", err)
		os.Exit(1)
	}
	raw, err := src.ReadSheet("raw_data", 9)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading raw_data: %v\n", err)
		os.Exit(1)
	}

	stopped, err := selector.SelectStopped(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error selecting stopped equipment: %v\n", err)
		os.Exit(1)
	}
	large, err := selector.SelectLargeTonnage(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error selecting large tonnage: %v\n", err)
		os.Exit(1)
	}

	tz, _ := time.LoadLocation("Asia/Taipei")
	doc := &model.ReportDocument{
		Title:        "Production Status (sample)",
		GeneratedAt:  time.Now().In(tz),
		Dashboard:    render.Dashboard(dashboard),
		Stopped:      render.Records(stopped),
		LargeTonnage: render.Records(large),
	}

	registry := report.NewRegistry(tz, "")
	previews, err := registry.WritePreviews(doc, ".", "sample_report", registry.Formats())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating previews: %v\n", err)
		os.Exit(1)
	}
	for _, p := range previews {
		fmt.Printf("✅ Preview: %s\n", p)
	}

	fmt.Println()
	fmt.Println("📊 Sample Data Summary:")
	fmt.Printf("   - Stopped machines: %d\n", stopped.Len())
	fmt.Printf("   - Large tonnage stops: %d\n", large.Len())
}

func writeSampleWorkbook(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	setRow := func(sheet string, row int, values []interface{}) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &values)
	}

	if _, err := f.NewSheet("Dashboard"); err != nil {
		return err
	}
	dashboard := [][]interface{}{
		{"", "", "廠區", "開機率", "開機", "停機", "首件", "修模", "備註"},
		{}, {}, {}, {},
		{"", "", "合計", 1, 118, 12, 3, 2, ""},
		{"", "", "A 棟", 0.9231, 48, 4, 1, 1, ""},
		{"", "", "B 棟", 0.8345, 40, 8, 2, 1, "換線\n進行中"},
		{"", "", "C 棟", 1, 30, 0, 0, 0, ""},
		{"", "", "D 棟", 0.5, 10, 10, 0, 0, ""},
	}
	for i, row := range dashboard {
		if err := setRow("Dashboard", i+1, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet("raw_data"); err != nil {
		return err
	}
	if err := setRow("raw_data", 1, []interface{}{"Production Status raw data"}); err != nil {
		return err
	}
	header := make([]interface{}, len(model.LargeTonnageColumns))
	for i, c := range model.LargeTonnageColumns {
		header[i] = c
	}
	if err := setRow("raw_data", 10, header); err != nil {
		return err
	}

	machines := [][]interface{}{
		{"G1", "A1", "M-101", "STOP", "首件中", "P-01", "AB-1\nrev2", "外殼", 1, "等待首件確認", "", 30, 32, "", "200T", "Ø20", "FANUC", 1024},
		{"G1", "A1", "M-102", "RUN", "", "P-02", "AB-2", "蓋板", 2, "", "", 28, 28, "", "200T", "Ø20", "FANUC", 1025},
		{"G2", "B3", "M-203", "STOP", "模具異常或修模", "P-03", "CD-7", "支架", 1, "頂針斷裂", "待料", 40, 45, "超出", "90T", "Ø12", "JSW", 0},
		{"G2", "B4", "M-204", "STOP", "開機中", "P-04", "EF-3", "底座", 3, "", "", 35, 36, "", "350T", "Ø30", "NISSEI", 0},
	}
	for i, m := range machines {
		if err := setRow("raw_data", 11+i, m); err != nil {
			return err
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	return f.SaveAs(path)
}
