// Package html renders styled tables as inline-styled HTML and assembles the
// mail body of the production status report.
package html

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"production-report/internal/model"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// ImageAlt is shown by mail clients that cannot load the chart image.
const ImageAlt = "請使用電腦設備觀看(已連上內網的設備)，並確保您具有 權限"

// Writer implements report.ReportWriter for HTML format.
type Writer struct {
	timezone     *time.Location
	templatePath string // User-defined body template (optional)
	tables       *template.Template
}

// TemplateData holds the values passed to the body template. The table
// fields are complete, already escaped fragments.
type TemplateData struct {
	Title        string
	Date         string
	GeneratedAt  string
	Dashboard    template.HTML
	Stopped      template.HTML
	LargeTonnage template.HTML
	ImageSrc     template.URL
	ImageAlt     string
}

var funcMap = template.FuncMap{
	"css": func(s model.Style) template.CSS { return template.CSS(s.CSS()) },
}

// NewWriter creates a new HTML report writer.
// If timezone is nil, it defaults to Asia/Taipei.
// If templatePath is empty, the embedded default template will be used.
func NewWriter(timezone *time.Location, templatePath string) *Writer {
	if timezone == nil {
		timezone, _ = time.LoadLocation("Asia/Taipei")
	}
	tables := template.Must(template.New("tables.html").Funcs(funcMap).ParseFS(embeddedTemplates, "templates/tables.html"))
	return &Writer{
		timezone:     timezone,
		templatePath: templatePath,
		tables:       tables,
	}
}

// Format returns the format identifier for this writer.
func (w *Writer) Format() string {
	return "html"
}

// Extension returns the file extension of written reports.
func (w *Writer) Extension() string {
	return ".html"
}

// RenderTable renders one styled table. Region tables are wrapped in a
// paragraph with the dashboard background; record tables get a bordered
// layout with a header row. A nil table renders as nothing.
func (w *Writer) RenderTable(t *model.StyledTable) (template.HTML, error) {
	if t == nil {
		return "", nil
	}
	name := "records"
	if t.Kind == model.TableRegion {
		name = "region"
	}
	var buf bytes.Buffer
	if err := w.tables.ExecuteTemplate(&buf, name, t); err != nil {
		return "", fmt.Errorf("failed to render %s table: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// Render assembles the complete mail body: dashboard table, chart image,
// stopped equipment table and large tonnage table, in that order.
func (w *Writer) Render(doc *model.ReportDocument) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("report document is nil")
	}

	tmpl, err := w.loadTemplate()
	if err != nil {
		return "", fmt.Errorf("failed to load template: %w", err)
	}

	data, err := w.prepareTemplateData(doc)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// Write renders the mail body to outputPath.
func (w *Writer) Write(doc *model.ReportDocument, outputPath string) error {
	if doc == nil {
		return fmt.Errorf("report document is nil")
	}

	// Ensure output path has .html extension
	if !strings.HasSuffix(strings.ToLower(outputPath), ".html") {
		outputPath = outputPath + ".html"
	}

	body, err := w.Render(doc)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, []byte(body), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// loadTemplate loads the body template.
// It first tries to load a user-defined template, then falls back to the embedded default.
func (w *Writer) loadTemplate() (*template.Template, error) {
	if w.templatePath != "" {
		if _, err := os.Stat(w.templatePath); err == nil {
			tmpl, err := template.New(filepath.Base(w.templatePath)).Funcs(funcMap).ParseFiles(w.templatePath)
			if err != nil {
				return nil, fmt.Errorf("failed to parse user template: %w", err)
			}
			return tmpl, nil
		}
		// User template not found, fall through to default
	}

	tmpl, err := template.New("default.html").Funcs(funcMap).ParseFS(embeddedTemplates, "templates/default.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded template: %w", err)
	}
	return tmpl, nil
}

func (w *Writer) prepareTemplateData(doc *model.ReportDocument) (*TemplateData, error) {
	dashboard, err := w.RenderTable(doc.Dashboard)
	if err != nil {
		return nil, err
	}
	stopped, err := w.RenderTable(doc.Stopped)
	if err != nil {
		return nil, err
	}
	largeTonnage, err := w.RenderTable(doc.LargeTonnage)
	if err != nil {
		return nil, err
	}

	generated := doc.GeneratedAt.In(w.timezone)
	return &TemplateData{
		Title:        doc.Title,
		Date:         generated.Format("2006-01-02"),
		GeneratedAt:  generated.Format("2006-01-02 15:04:05"),
		Dashboard:    dashboard,
		Stopped:      stopped,
		LargeTonnage: largeTonnage,
		ImageSrc:     template.URL(doc.Chart.Src()),
		ImageAlt:     ImageAlt,
	}, nil
}
