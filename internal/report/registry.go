package report

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"production-report/internal/model"
	"production-report/internal/report/excel"
	"production-report/internal/report/html"
)

// Registry resolves preview format names to writers.
type Registry struct {
	writers map[string]ReportWriter
}

// NewRegistry returns a registry with the HTML and Excel writers. Both date
// documents in timezone; htmlTemplatePath optionally replaces the embedded
// body template.
func NewRegistry(timezone *time.Location, htmlTemplatePath string) *Registry {
	return NewRegistryOf(
		html.NewWriter(timezone, htmlTemplatePath),
		excel.NewWriter(timezone),
	)
}

// NewRegistryOf registers writers under their Format names.
// A later writer replaces an earlier one with the same name.
func NewRegistryOf(writers ...ReportWriter) *Registry {
	r := &Registry{writers: make(map[string]ReportWriter, len(writers))}
	for _, w := range writers {
		r.writers[normalize(w.Format())] = w
	}
	return r
}

func normalize(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}

// Get returns the writer for format. Lookup ignores case and surrounding space.
func (r *Registry) Get(format string) (ReportWriter, error) {
	writer, ok := r.writers[normalize(format)]
	if !ok {
		return nil, fmt.Errorf("unsupported report format %q, supported formats: %s",
			format, strings.Join(r.Formats(), ", "))
	}
	return writer, nil
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	formats := make([]string, 0, len(r.writers))
	for format := range r.writers {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

// Has reports whether format is registered.
func (r *Registry) Has(format string) bool {
	_, ok := r.writers[normalize(format)]
	return ok
}

// WritePreviews writes doc once per format into dir as base plus the
// format's extension, creating dir when needed. It stops at the first
// failure and returns the files written so far.
func (r *Registry) WritePreviews(doc *model.ReportDocument, dir, base string, formats []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, format := range formats {
		writer, err := r.Get(format)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, base+writer.Extension())
		if err := writer.Write(doc, path); err != nil {
			return written, fmt.Errorf("failed to write %s preview: %w", writer.Format(), err)
		}
		written = append(written, path)
	}
	return written, nil
}
