// Package report defines the ReportWriter interface and a registry of the
// output formats a production status report can be written in.
package report

import (
	"production-report/internal/model"
)

// ReportWriter writes a composed report document to a file.
type ReportWriter interface {
	// Write generates the report and saves it to outputPath. The
	// extension appropriate for the format is appended when missing.
	Write(doc *model.ReportDocument, outputPath string) error

	// Format returns the format identifier for this writer,
	// "excel" or "html".
	Format() string

	// Extension returns the file extension Write appends, with the dot.
	Extension() string
}
