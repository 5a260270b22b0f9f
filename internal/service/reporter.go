// Package service runs the production status report: it refreshes the
// workbook, extracts and renders the report tables and delivers the mail.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"production-report/internal/config"
	"production-report/internal/model"
	"production-report/internal/render"
	"production-report/internal/report"
	"production-report/internal/report/html"
	"production-report/internal/selector"
	"production-report/internal/workbook"
)

// DateLayout is the date format of subjects and output file names.
const DateLayout = "2006-01-02"

const reportTitle = "Production Status"

// RunResult summarizes one report run.
type RunResult struct {
	RunID        string
	Date         string
	ImagePath    string
	Stopped      int
	LargeTonnage int
	Delivered    bool
	Previews     []string // files written by a dry run
	Duration     time.Duration
}

// Reporter runs the report pipeline end to end. Steps never overlap.
type Reporter struct {
	config       *config.Config
	orchestrator *Orchestrator
	deliverer    *Deliverer
	assembler    *html.Writer
	registry     *report.Registry
	timezone     *time.Location
	dryRun       bool
	now          func() time.Time
	logger       zerolog.Logger
}

// ReporterOption is a functional option for configuring a Reporter.
type ReporterOption func(*Reporter)

// WithDryRun writes previews to report.output_dir instead of sending mail.
func WithDryRun() ReporterOption {
	return func(r *Reporter) {
		r.dryRun = true
	}
}

// WithReportClock replaces the clock used to date the report.
func WithReportClock(now func() time.Time) ReporterOption {
	return func(r *Reporter) {
		r.now = now
	}
}

// NewReporter creates a new Reporter. deliverer may be nil for dry runs.
func NewReporter(
	cfg *config.Config,
	orchestrator *Orchestrator,
	deliverer *Deliverer,
	logger zerolog.Logger,
	opts ...ReporterOption,
) (*Reporter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}

	tz := cfg.Location()
	r := &Reporter{
		config:       cfg,
		orchestrator: orchestrator,
		deliverer:    deliverer,
		assembler:    html.NewWriter(tz, cfg.Report.HTMLTemplate),
		registry:     report.NewRegistry(tz, cfg.Report.HTMLTemplate),
		timezone:     tz,
		now:          time.Now,
		logger:       logger.With().Str("component", "reporter").Logger(),
	}

	// Apply options
	for _, opt := range opts {
		opt(r)
	}

	if !r.dryRun && r.deliverer == nil {
		return nil, fmt.Errorf("deliverer is required unless running dry")
	}

	return r, nil
}

// Run executes the pipeline:
// 1. Refreshes the workbook and captures the chart
// 2. Reads the dashboard and raw data sheets
// 3. Selects stopped and large tonnage equipment
// 4. Renders the styled tables and assembles the body
// 5. Sends the mail, or writes previews on a dry run
//
// Orchestration and schema failures stop the run before anything is sent.
// A failed send returns a DeliveryError together with the result.
func (r *Reporter) Run(ctx context.Context) (*RunResult, error) {
	start := r.now().In(r.timezone)
	result := &RunResult{
		RunID: uuid.NewString(),
		Date:  start.Format(DateLayout),
	}
	logger := r.logger.With().Str("run_id", result.RunID).Logger()
	logger.Info().
		Time("start_time", start).
		Bool("dry_run", r.dryRun).
		Msg("starting report run")

	// Step 1: Refresh and capture
	logger.Debug().Msg("step 1: refreshing workbook")
	orchestrated, err := r.orchestrator.Run(ctx)
	if err != nil {
		return nil, err
	}
	result.ImagePath = orchestrated.ImagePath

	// Step 2: Read sheets
	logger.Debug().Msg("step 2: reading workbook")
	dashboard, raw, err := r.readSheets()
	if err != nil {
		logger.Error().Err(err).Msg("failed to read workbook")
		return nil, err
	}

	// Step 3: Select equipment
	logger.Debug().Int("raw_rows", raw.Height()).Msg("step 3: selecting equipment")
	stopped, err := selector.SelectStopped(raw)
	if err != nil {
		logger.Error().Err(err).Msg("stopped equipment selection failed")
		return nil, err
	}
	largeTonnage, err := selector.SelectLargeTonnage(raw)
	if err != nil {
		logger.Error().Err(err).Msg("large tonnage selection failed")
		return nil, err
	}
	result.Stopped = stopped.Len()
	result.LargeTonnage = largeTonnage.Len()

	// Step 4: Render
	logger.Debug().Msg("step 4: rendering report")
	doc := &model.ReportDocument{
		Title:        reportTitle + " " + result.Date,
		GeneratedAt:  start,
		Dashboard:    render.Dashboard(dashboard),
		Stopped:      render.Records(stopped),
		LargeTonnage: render.Records(largeTonnage),
		Chart:        model.ChartImage{Path: result.ImagePath},
	}

	if r.dryRun {
		previews, err := r.registry.WritePreviews(doc, r.config.Report.OutputDir, "production_status_"+result.Date, r.config.Report.Formats)
		if err != nil {
			logger.Error().Err(err).Msg("failed to write previews")
			return nil, err
		}
		result.Previews = previews
		result.Duration = r.now().Sub(start)
		logger.Info().Strs("previews", previews).Msg("dry run completed, mail not sent")
		return result, nil
	}

	r.deliverer.Prepare(doc)
	body, err := r.assembler.Render(doc)
	if err != nil {
		logger.Error().Err(err).Msg("failed to assemble mail body")
		return nil, fmt.Errorf("failed to assemble mail body: %w", err)
	}

	// Step 5: Deliver
	logger.Debug().Msg("step 5: delivering report")
	err = r.deliverer.Deliver(ctx, doc, body)
	result.Delivered = err == nil
	result.Duration = r.now().Sub(start)

	logger.Info().
		Int("stopped", result.Stopped).
		Int("large_tonnage", result.LargeTonnage).
		Bool("delivered", result.Delivered).
		Dur("duration", result.Duration).
		Msg("report run completed")

	return result, err
}

func (r *Reporter) readSheets() (*model.Table, *model.Table, error) {
	src, err := workbook.Open(r.config.Workbook.Path)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()
	r.logger.Debug().Str("path", src.Path()).Msg("workbook opened")

	dashboard, err := src.ReadSheet(r.config.Workbook.DashboardSheet, 0)
	if err != nil {
		return nil, nil, err
	}
	raw, err := src.ReadSheet(r.config.Workbook.RawDataSheet, r.config.Workbook.RawDataSkipRows)
	if err != nil {
		return nil, nil, err
	}
	return dashboard, raw, nil
}
