package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"production-report/internal/config"
	"production-report/internal/engine"
)

// State is a phase of the recalculation cycle.
type State string

// Orchestrator states.
const (
	StateIdle           State = "idle"
	StateRecalculating  State = "recalculating"
	StateWaiting        State = "waiting"
	StatePersisting     State = "persisting"
	StateImageCapturing State = "image_capturing"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// IsTerminal reports whether the state ends a cycle.
func IsTerminal(s State) bool {
	return s == StateDone || s == StateFailed
}

func isAllowedTransition(from, to State) bool {
	if to == StateFailed {
		return !IsTerminal(from)
	}
	switch from {
	case StateIdle:
		return to == StateRecalculating || to == StateImageCapturing || to == StateDone
	case StateRecalculating:
		return to == StateWaiting
	case StateWaiting:
		return to == StatePersisting
	case StatePersisting:
		return to == StateImageCapturing || to == StateDone
	case StateImageCapturing:
		return to == StateDone
	default:
		return false
	}
}

// ErrOrchestration matches every OrchestrationError.
var ErrOrchestration = errors.New("orchestration failed")

// OrchestrationError reports the state in which the engine cycle failed.
type OrchestrationError struct {
	State State
	Err   error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("orchestration failed while %s: %v", e.State, e.Err)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

func (e *OrchestrationError) Is(target error) bool {
	return target == ErrOrchestration
}

// OrchestrationResult describes a completed cycle.
type OrchestrationResult struct {
	ImagePath       string        // empty when capture is disabled
	Waited          time.Duration // time spent in the settle wait
	RecalcConfirmed bool          // the engine reported completion before the bound
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Orchestrator drives the external engine through refresh, settle, save
// and chart capture. One Orchestrator runs one cycle at a time.
type Orchestrator struct {
	launcher engine.Launcher
	workbook string
	recalc   config.RecalcConfig
	capture  config.CaptureConfig
	captured string // workbook the chart is copied from
	filename *template.Template
	timezone *time.Location
	sleep    SleepFunc
	now      func() time.Time
	logger   zerolog.Logger

	state   State
	history []State
}

// OrchestratorOption is a functional option for configuring an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSleep replaces the settle wait.
func WithSleep(sleep SleepFunc) OrchestratorOption {
	return func(o *Orchestrator) {
		o.sleep = sleep
	}
}

// WithClock replaces the clock used to date the chart image.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithSkipRecalc disables the refresh phase for this orchestrator.
func WithSkipRecalc() OrchestratorOption {
	return func(o *Orchestrator) {
		o.recalc.Enabled = false
	}
}

// WithSkipCapture disables the chart capture phase for this orchestrator.
func WithSkipCapture() OrchestratorOption {
	return func(o *Orchestrator) {
		o.capture.Enabled = false
	}
}

// NewOrchestrator creates a new Orchestrator for the workbook in cfg.
func NewOrchestrator(
	cfg *config.Config,
	launcher engine.Launcher,
	logger zerolog.Logger,
	opts ...OrchestratorOption,
) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	filename, err := template.New("filename").Option("missingkey=error").Parse(cfg.Capture.FilenameTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid capture filename template: %w", err)
	}

	o := &Orchestrator{
		launcher: launcher,
		workbook: cfg.Workbook.Path,
		recalc:   cfg.Recalc,
		capture:  cfg.Capture,
		captured: cfg.CaptureWorkbook(),
		filename: filename,
		timezone: cfg.Location(),
		sleep:    sleepContext,
		now:      time.Now,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		state:    StateIdle,
	}

	// Apply options
	for _, opt := range opts {
		opt(o)
	}

	if (o.recalc.Enabled || o.capture.Enabled) && o.launcher == nil {
		return nil, fmt.Errorf("engine launcher is required")
	}

	return o, nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// History returns the states visited by the last cycle, in order.
func (o *Orchestrator) History() []State {
	return append([]State(nil), o.history...)
}

func (o *Orchestrator) transition(to State) error {
	if !isAllowedTransition(o.state, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", o.state, to)
	}
	o.logger.Debug().Str("from", string(o.state)).Str("to", string(to)).Msg("state transition")
	o.state = to
	o.history = append(o.history, to)
	return nil
}

// fail moves to Failed and wraps err with the state it happened in.
func (o *Orchestrator) fail(err error) error {
	failedIn := o.state
	if !IsTerminal(o.state) {
		o.state = StateFailed
		o.history = append(o.history, StateFailed)
	}
	o.logger.Error().Err(err).Str("state", string(failedIn)).Msg("orchestration failed")
	return &OrchestrationError{State: failedIn, Err: err}
}

// Run executes one cycle. The workbook is saved and closed before Run
// returns successfully, so readers never see a partially refreshed file.
func (o *Orchestrator) Run(ctx context.Context) (*OrchestrationResult, error) {
	o.state = StateIdle
	o.history = []State{StateIdle}
	result := &OrchestrationResult{}

	if o.recalc.Enabled {
		if err := o.recalculate(ctx, result); err != nil {
			return nil, o.fail(err)
		}
	} else {
		o.logger.Info().Msg("recalculation skipped")
	}

	if o.capture.Enabled {
		if err := o.transition(StateImageCapturing); err != nil {
			return nil, o.fail(err)
		}
		path, err := o.captureImage(ctx)
		if err != nil {
			return nil, o.fail(err)
		}
		result.ImagePath = path
	} else {
		o.logger.Info().Msg("chart capture skipped")
	}

	if err := o.transition(StateDone); err != nil {
		return nil, o.fail(err)
	}
	return result, nil
}

func (o *Orchestrator) recalculate(ctx context.Context, result *OrchestrationResult) error {
	if err := o.transition(StateRecalculating); err != nil {
		return err
	}

	eng, err := o.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("failed to launch engine: %w", err)
	}

	wb, err := eng.OpenWorkbook(ctx, o.workbook)
	if err != nil {
		o.release(ctx, eng, nil)
		return fmt.Errorf("failed to open workbook %s: %w", o.workbook, err)
	}

	o.logger.Info().Str("workbook", o.workbook).Str("macro", o.recalc.Macro).Msg("running refresh macro")
	if err := wb.RunMacro(ctx, o.recalc.Macro); err != nil {
		o.release(ctx, eng, wb)
		return fmt.Errorf("macro %s failed: %w", o.recalc.Macro, err)
	}

	if err := o.transition(StateWaiting); err != nil {
		o.release(ctx, eng, wb)
		return err
	}
	waited, confirmed, err := o.settle(ctx, wb)
	result.Waited = waited
	result.RecalcConfirmed = confirmed
	if err != nil {
		o.release(ctx, eng, wb)
		return fmt.Errorf("settle wait interrupted: %w", err)
	}

	if err := o.transition(StatePersisting); err != nil {
		o.release(ctx, eng, wb)
		return err
	}
	if err := wb.Save(ctx); err != nil {
		o.release(ctx, eng, wb)
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	if err := wb.Close(ctx, false); err != nil {
		o.release(ctx, eng, nil)
		return fmt.Errorf("failed to close workbook: %w", err)
	}
	if err := eng.Quit(ctx); err != nil {
		return fmt.Errorf("failed to quit engine: %w", err)
	}

	o.logger.Info().
		Dur("waited", waited).
		Bool("confirmed", confirmed).
		Msg("workbook refreshed and saved")
	return nil
}

// settle waits for the engine to finish recalculating. The settle duration
// bounds the wait; it is a heuristic unless the engine confirms completion.
func (o *Orchestrator) settle(ctx context.Context, wb engine.Workbook) (time.Duration, bool, error) {
	bound := o.recalc.SettleDuration
	watcher, ok := wb.(engine.RecalcWatcher)
	if o.recalc.PollInterval <= 0 || !ok {
		o.logger.Info().Dur("duration", bound).Msg("waiting for recalculation to settle")
		if err := o.sleep(ctx, bound); err != nil {
			return 0, false, err
		}
		return bound, false, nil
	}

	var waited time.Duration
	for waited < bound {
		step := min(o.recalc.PollInterval, bound-waited)
		if err := o.sleep(ctx, step); err != nil {
			return waited, false, err
		}
		waited += step

		done, err := watcher.RecalcDone(ctx)
		if err != nil {
			o.logger.Warn().Err(err).Msg("engine completion check failed, waiting for the full settle duration")
			if err := o.sleep(ctx, bound-waited); err != nil {
				return waited, false, err
			}
			return bound, false, nil
		}
		if done {
			o.logger.Info().Dur("waited", waited).Msg("engine reported recalculation complete")
			return waited, true, nil
		}
	}

	o.logger.Warn().
		Dur("settle_duration", bound).
		Msg("settle duration reached before the engine reported completion, proceeding anyway")
	return waited, false, nil
}

func (o *Orchestrator) captureImage(ctx context.Context) (string, error) {
	path, err := o.imagePath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	eng, err := o.launcher.Launch(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to launch engine: %w", err)
	}
	clip, ok := eng.(engine.Clipboard)
	if !ok {
		o.release(ctx, eng, nil)
		return "", fmt.Errorf("engine does not expose a clipboard")
	}

	wb, err := eng.OpenWorkbook(ctx, o.captured)
	if err != nil {
		o.release(ctx, eng, nil)
		return "", fmt.Errorf("failed to open workbook %s: %w", o.captured, err)
	}

	o.logger.Info().
		Str("sheet", o.capture.Sheet).
		Str("range", o.capture.Range).
		Msg("copying chart region")
	if err := wb.CopyRangeAsImage(ctx, o.capture.Sheet, o.capture.Range); err != nil {
		o.release(ctx, eng, wb)
		return "", fmt.Errorf("failed to copy %s!%s: %w", o.capture.Sheet, o.capture.Range, err)
	}
	if err := clip.SaveImage(ctx, path); err != nil {
		o.release(ctx, eng, wb)
		return "", fmt.Errorf("failed to save clipboard image: %w", err)
	}
	if err := verifyPNG(path); err != nil {
		o.release(ctx, eng, wb)
		return "", err
	}

	if err := wb.Close(ctx, false); err != nil {
		o.release(ctx, eng, nil)
		return "", fmt.Errorf("failed to close workbook: %w", err)
	}
	if err := eng.Quit(ctx); err != nil {
		return "", fmt.Errorf("failed to quit engine: %w", err)
	}

	o.logger.Info().Str("path", path).Msg("chart image saved")
	return path, nil
}

// imagePath renders the dated chart filename inside the output directory.
func (o *Orchestrator) imagePath() (string, error) {
	var buf bytes.Buffer
	data := struct{ Date string }{Date: o.now().In(o.timezone).Format(DateLayout)}
	if err := o.filename.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render image filename: %w", err)
	}
	return filepath.Join(o.capture.OutputDir, buf.String()), nil
}

// release closes wb without saving and quits eng. Errors are logged only.
func (o *Orchestrator) release(ctx context.Context, eng engine.Engine, wb engine.Workbook) {
	ctx = context.WithoutCancel(ctx)
	if wb != nil {
		if err := wb.Close(ctx, false); err != nil {
			o.logger.Warn().Err(err).Msg("failed to close workbook during cleanup")
		}
	}
	if err := eng.Quit(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("failed to quit engine during cleanup")
	}
}

func verifyPNG(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("chart image missing: %w", err)
	}
	defer f.Close()

	if _, err := png.DecodeConfig(f); err != nil {
		return fmt.Errorf("chart image %s is not a PNG: %w", path, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
