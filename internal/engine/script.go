package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Helper protocol operations.
const (
	OpOpen          = "open"
	OpRunMacro      = "run_macro"
	OpSave          = "save"
	OpClose         = "close"
	OpCopyPicture   = "copy_picture"
	OpGrabClipboard = "grab_clipboard"
	OpRecalcStatus  = "recalc_status"
	OpQuit          = "quit"
)

// DefaultRequestTimeout bounds a single helper request.
const DefaultRequestTimeout = 2 * time.Minute

// ErrHelperExited is returned once the helper process has gone away.
var ErrHelperExited = errors.New("engine helper exited")

// Request is one line written to the helper's stdin.
type Request struct {
	ID       string `json:"id"`
	Op       string `json:"op"`
	Path     string `json:"path,omitempty"`
	Workbook string `json:"workbook,omitempty"`
	Macro    string `json:"macro,omitempty"`
	Sheet    string `json:"sheet,omitempty"`
	Range    string `json:"range,omitempty"`
	Save     bool   `json:"save,omitempty"`
	Visible  bool   `json:"visible,omitempty"`
}

// Response is one line read from the helper's stdout.
type Response struct {
	ID       string `json:"id"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Workbook string `json:"workbook,omitempty"`
	Done     bool   `json:"done,omitempty"`
}

// ScriptLauncher starts a helper process that drives the spreadsheet
// application and speaks JSON lines on stdin/stdout.
type ScriptLauncher struct {
	Executable string
	Args       []string
	Env        []string // appended to the current environment
	Timeout    time.Duration
	Visible    bool
	Logger     zerolog.Logger
}

// Launch starts the helper process.
func (l *ScriptLauncher) Launch(ctx context.Context) (Engine, error) {
	return l.Start(ctx)
}

// Start starts the helper process and returns the concrete engine.
func (l *ScriptLauncher) Start(ctx context.Context) (*ScriptEngine, error) {
	if l.Executable == "" {
		return nil, fmt.Errorf("engine executable is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := l.Logger.With().Str("component", "engine").Logger()

	// The helper must outlive ctx: it is stopped by Quit.
	cmd := exec.Command(l.Executable, l.Args...)
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.Stderr = &logWriter{logger: logger}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open helper stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open helper stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine helper %s: %w", l.Executable, err)
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	e := &ScriptEngine{
		cmd:       cmd,
		stdin:     stdin,
		responses: make(chan Response),
		exited:    make(chan struct{}),
		timeout:   timeout,
		visible:   l.Visible,
		logger:    logger,
	}
	go e.readLoop(stdout)

	logger.Debug().
		Str("executable", l.Executable).
		Int("pid", cmd.Process.Pid).
		Msg("engine helper started")

	return e, nil
}

// ScriptEngine is an Engine backed by a helper process. Requests are
// serialized; each waits for the response carrying its ID.
type ScriptEngine struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	responses chan Response
	exited    chan struct{}
	readErr   error

	mu      sync.Mutex
	timeout time.Duration
	visible bool
	quit    bool
	logger  zerolog.Logger
}

func (e *ScriptEngine) readLoop(stdout io.Reader) {
	defer close(e.exited)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var resp Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			e.logger.Warn().Str("line", line).Msg("ignoring malformed helper output")
			continue
		}
		select {
		case e.responses <- resp:
		case <-time.After(e.timeout):
			e.logger.Warn().Str("id", resp.ID).Msg("dropping unclaimed helper response")
		}
	}
	e.readErr = scanner.Err()
}

// call sends req and waits for its response.
func (e *ScriptEngine) call(ctx context.Context, req Request) (Response, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.quit {
		return Response{}, ErrHelperExited
	}

	req.ID = uuid.NewString()
	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode %s request: %w", req.Op, err)
	}

	start := time.Now()
	if _, err := e.stdin.Write(append(data, '\n')); err != nil {
		return Response{}, fmt.Errorf("failed to send %s request: %w", req.Op, err)
	}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	for {
		select {
		case resp := <-e.responses:
			if resp.ID != req.ID {
				e.logger.Warn().Str("id", resp.ID).Str("want", req.ID).Msg("discarding stale helper response")
				continue
			}
			e.logger.Debug().
				Str("op", req.Op).
				Dur("duration", time.Since(start)).
				Bool("ok", resp.OK).
				Msg("helper request completed")
			if !resp.OK {
				return resp, fmt.Errorf("%s failed: %s", req.Op, resp.Error)
			}
			return resp, nil
		case <-e.exited:
			if e.readErr != nil {
				return Response{}, fmt.Errorf("%w: %v", ErrHelperExited, e.readErr)
			}
			return Response{}, ErrHelperExited
		case <-timer.C:
			return Response{}, fmt.Errorf("%s timed out after %s", req.Op, e.timeout)
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
}

// OpenWorkbook opens the workbook at path in the helper's application instance.
func (e *ScriptEngine) OpenWorkbook(ctx context.Context, path string) (Workbook, error) {
	resp, err := e.call(ctx, Request{Op: OpOpen, Path: path, Visible: e.visible})
	if err != nil {
		return nil, err
	}
	if resp.Workbook == "" {
		return nil, fmt.Errorf("open %s: helper returned no workbook handle", path)
	}
	return &scriptWorkbook{engine: e, handle: resp.Workbook, path: path}, nil
}

// SaveImage writes the clipboard bitmap to path.
func (e *ScriptEngine) SaveImage(ctx context.Context, path string) error {
	_, err := e.call(ctx, Request{Op: OpGrabClipboard, Path: path})
	return err
}

// Quit asks the helper to release the application and waits for it to exit.
func (e *ScriptEngine) Quit(ctx context.Context) error {
	e.mu.Lock()
	quit := e.quit
	e.mu.Unlock()
	if quit {
		return nil
	}

	_, callErr := e.call(ctx, Request{Op: OpQuit})

	e.mu.Lock()
	e.quit = true
	e.mu.Unlock()
	_ = e.stdin.Close()

	done := make(chan error, 1)
	go func() {
		// stdout must be drained before Wait closes it
		<-e.exited
		done <- e.cmd.Wait()
	}()

	select {
	case err := <-done:
		if callErr != nil && !errors.Is(callErr, ErrHelperExited) {
			return callErr
		}
		if err != nil {
			return fmt.Errorf("engine helper exited with error: %w", err)
		}
		return nil
	case <-time.After(e.timeout):
		e.kill()
		return fmt.Errorf("engine helper did not exit within %s", e.timeout)
	case <-ctx.Done():
		e.kill()
		return ctx.Err()
	}
}

func (e *ScriptEngine) kill() {
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
}

type scriptWorkbook struct {
	engine *ScriptEngine
	handle string
	path   string
}

func (w *scriptWorkbook) RunMacro(ctx context.Context, name string) error {
	_, err := w.engine.call(ctx, Request{Op: OpRunMacro, Workbook: w.handle, Macro: name})
	return err
}

func (w *scriptWorkbook) Save(ctx context.Context) error {
	_, err := w.engine.call(ctx, Request{Op: OpSave, Workbook: w.handle})
	return err
}

func (w *scriptWorkbook) Close(ctx context.Context, save bool) error {
	_, err := w.engine.call(ctx, Request{Op: OpClose, Workbook: w.handle, Save: save})
	return err
}

func (w *scriptWorkbook) CopyRangeAsImage(ctx context.Context, sheet, rng string) error {
	_, err := w.engine.call(ctx, Request{Op: OpCopyPicture, Workbook: w.handle, Sheet: sheet, Range: rng})
	return err
}

// RecalcDone asks the application whether calculation has finished.
func (w *scriptWorkbook) RecalcDone(ctx context.Context) (bool, error) {
	resp, err := w.engine.call(ctx, Request{Op: OpRecalcStatus, Workbook: w.handle})
	if err != nil {
		return false, err
	}
	return resp.Done, nil
}

// logWriter forwards helper stderr lines to the logger.
type logWriter struct {
	logger zerolog.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\r\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.logger.Debug().Str("stream", "stderr").Msg(line)
		}
	}
	return len(p), nil
}
