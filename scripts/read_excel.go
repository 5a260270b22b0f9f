//go:build ignore
// +build ignore

// This script reads and displays the contents of an Excel report preview for verification.
// Run with: go run scripts/read_excel.go [path]
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

func main() {
	path := "sample_report.xlsx"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer f.Close()

	fmt.Println("📊 Sheets:", f.GetSheetList())
	fmt.Println()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			fmt.Println("Error:", err)
			continue
		}

		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  %s (%d rows)\n", sheet, len(rows))
		fmt.Println("═══════════════════════════════════════")
		for i, row := range rows {
			fmt.Printf("  %3d | %s\n", i+1, strings.Join(row, " | "))
		}

		// Font color of the first data cell shows the category coloring
		if len(rows) > 1 {
			styleID, _ := f.GetCellStyle(sheet, "A2")
			style, err := f.GetStyle(styleID)
			if err == nil && style.Font != nil {
				fmt.Printf("  A2 font: color=%s size=%.1f bold=%v\n", style.Font.Color, style.Font.Size, style.Font.Bold)
			}
		}
		fmt.Println()
	}
}
