package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"production-report/internal/config"
	"production-report/internal/engine"
	"production-report/internal/model"
)

// fixedNow is 08:30 in Asia/Taipei.
var fixedNow = time.Date(2026, 10, 18, 0, 30, 0, 0, time.UTC)

// fakeEnv is a scripted spreadsheet engine. Every call is recorded in order.
type fakeEnv struct {
	calls       []string
	failOn      map[string]error // keyed by call verb: launch, open, macro, save, close, copy, grab, quit
	watch       bool             // workbooks implement engine.RecalcWatcher
	doneAfter   int              // RecalcDone reports true from this poll on
	polls       int
	noClipboard bool
	image       []byte // written by SaveImage; a valid PNG when nil
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{failOn: map[string]error{}}
}

func (f *fakeEnv) record(verb, detail string) error {
	call := verb
	if detail != "" {
		call += " " + detail
	}
	f.calls = append(f.calls, call)
	return f.failOn[verb]
}

func (f *fakeEnv) Launch(ctx context.Context) (engine.Engine, error) {
	if err := f.record("launch", ""); err != nil {
		return nil, err
	}
	if f.noClipboard {
		return &fakeEngine{env: f}, nil
	}
	return &clipboardEngine{fakeEngine{env: f}}, nil
}

type fakeEngine struct {
	env *fakeEnv
}

func (e *fakeEngine) OpenWorkbook(ctx context.Context, path string) (engine.Workbook, error) {
	if err := e.env.record("open", filepath.Base(path)); err != nil {
		return nil, err
	}
	if e.env.watch {
		return &watchingWorkbook{fakeWorkbook{env: e.env}}, nil
	}
	return &fakeWorkbook{env: e.env}, nil
}

func (e *fakeEngine) Quit(ctx context.Context) error {
	return e.env.record("quit", "")
}

type clipboardEngine struct {
	fakeEngine
}

func (e *clipboardEngine) SaveImage(ctx context.Context, path string) error {
	if err := e.env.record("grab", ""); err != nil {
		return err
	}
	data := e.env.image
	if data == nil {
		data = pngBytes()
	}
	return os.WriteFile(path, data, 0o644)
}

type fakeWorkbook struct {
	env *fakeEnv
}

func (w *fakeWorkbook) RunMacro(ctx context.Context, name string) error {
	return w.env.record("macro", name)
}

func (w *fakeWorkbook) Save(ctx context.Context) error {
	return w.env.record("save", "")
}

func (w *fakeWorkbook) Close(ctx context.Context, save bool) error {
	return w.env.record("close", fmt.Sprintf("save=%v", save))
}

func (w *fakeWorkbook) CopyRangeAsImage(ctx context.Context, sheet, rng string) error {
	return w.env.record("copy", sheet+"!"+rng)
}

type watchingWorkbook struct {
	fakeWorkbook
}

func (w *watchingWorkbook) RecalcDone(ctx context.Context) (bool, error) {
	w.env.polls++
	if err := w.env.record("poll", ""); err != nil {
		return false, err
	}
	return w.env.polls >= w.env.doneAfter, nil
}

// sleepRecorder replaces the settle wait and records each requested duration.
type sleepRecorder struct {
	slept []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return ctx.Err()
}

func pngBytes() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// fakeTransport records sent messages and fails with err when set.
type fakeTransport struct {
	err  error
	sent []*model.Message
}

func (t *fakeTransport) Name() string {
	return "fake"
}

func (t *fakeTransport) Send(ctx context.Context, msg *model.Message) error {
	t.sent = append(t.sent, msg)
	return t.err
}

// writeStatusWorkbook saves a workbook with a Dashboard sheet and a raw data
// sheet. The raw data holds one large tonnage stop, one small stop and one
// running machine.
func writeStatusWorkbook(t *testing.T, rawColumns []string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	setRow := func(sheet string, row int, values []interface{}) {
		cell, err := excelize.CoordinatesToCellName(1, row)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &values))
	}

	_, err := f.NewSheet("Dashboard")
	require.NoError(t, err)
	header := make([]interface{}, 9)
	for i := range header {
		header[i] = fmt.Sprintf("c%d", i)
	}
	setRow("Dashboard", 1, header)
	for r := 0; r < 10; r++ {
		row := make([]interface{}, 9)
		for c := range row {
			row[c] = 2
		}
		switch r {
		case 5:
			row[3] = 1
		case 6:
			row[4] = 0.5
		}
		setRow("Dashboard", r+2, row)
	}

	_, err = f.NewSheet("raw_data")
	require.NoError(t, err)
	for r := 1; r <= 9; r++ {
		setRow("raw_data", r, []interface{}{"title"})
	}
	cols := make([]interface{}, len(rawColumns))
	for i, c := range rawColumns {
		cols[i] = c
	}
	setRow("raw_data", 10, cols)

	machines := []map[string]interface{}{
		{model.ColumnMachineNo: "M-01", model.ColumnEquipStatus: "STOP", model.ColumnProdCategory: "首件中", model.ColumnSizeMachine: "200T", model.ColumnScrew: "Ø20", model.ColumnToolingToolNo: 12},
		{model.ColumnMachineNo: "M-02", model.ColumnEquipStatus: "RUN", model.ColumnSizeMachine: "200T", model.ColumnScrew: "Ø20"},
		{model.ColumnMachineNo: "M-03", model.ColumnEquipStatus: "STOP", model.ColumnSizeMachine: "90T", model.ColumnScrew: "Ø12"},
	}
	for i, m := range machines {
		row := make([]interface{}, len(rawColumns))
		for c, name := range rawColumns {
			if v, ok := m[name]; ok {
				row[c] = v
			}
		}
		setRow("raw_data", 11+i, row)
	}

	require.NoError(t, f.DeleteSheet("Sheet1"))

	path := filepath.Join(t.TempDir(), "production_status.xlsm")
	require.NoError(t, f.SaveAs(path))
	return path
}

// newTestConfig returns a valid configuration around a fixture workbook.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	return &config.Config{
		Workbook: config.WorkbookConfig{
			Path:            writeStatusWorkbook(t, model.LargeTonnageColumns),
			DashboardSheet:  "Dashboard",
			RawDataSheet:    "raw_data",
			RawDataSkipRows: 9,
		},
		Recalc: config.RecalcConfig{
			Enabled:        true,
			Macro:          "refresh_dashboard",
			SettleDuration: 60 * time.Second,
		},
		Capture: config.CaptureConfig{
			Enabled:          true,
			Sheet:            "Chart",
			Range:            "B3:AI63",
			OutputDir:        filepath.Join(dir, "charts"),
			FilenameTemplate: "daily_mail_image_{{.Date}}.png",
		},
		Engine: config.EngineConfig{Executable: "helper"},
		Mail: config.MailConfig{
			Transport:       "smtp",
			Recipients:      []string{"ops@example.com", "lead@example.com"},
			SubjectTemplate: "Production Status - 每日開機狀態 {{.Date}}",
			InlineImage:     true,
			SMTP:            config.SMTPConfig{Host: "127.0.0.1", Port: 25, From: "report@example.com"},
		},
		Report: config.ReportConfig{
			Timezone:   "Asia/Taipei",
			OutputDir:  filepath.Join(dir, "reports"),
			Formats:    []string{"html", "excel"},
			ScheduleAt: "08:00",
		},
		Logging: config.LoggingConfig{Level: "info", Format: "json"},
	}
}
