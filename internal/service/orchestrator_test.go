package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"production-report/internal/config"
)

func newTestOrchestrator(t *testing.T, env *fakeEnv, opts ...OrchestratorOption) (*Orchestrator, *sleepRecorder) {
	t.Helper()
	cfg := newTestConfig(t)
	return newOrchestratorFor(t, cfg, env, opts...)
}

func newOrchestratorFor(t *testing.T, cfg *config.Config, env *fakeEnv, opts ...OrchestratorOption) (*Orchestrator, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	opts = append([]OrchestratorOption{WithSleep(rec.sleep), WithClock(func() time.Time { return fixedNow })}, opts...)
	o, err := NewOrchestrator(cfg, env, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return o, rec
}

func TestOrchestrator_FullCycle(t *testing.T) {
	env := newFakeEnv()
	o, rec := newTestOrchestrator(t, env)

	result, err := o.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []State{
		StateIdle, StateRecalculating, StateWaiting, StatePersisting, StateImageCapturing, StateDone,
	}, o.History())
	assert.Equal(t, StateDone, o.State())

	assert.Equal(t, []string{
		"launch",
		"open production_status.xlsm",
		"macro refresh_dashboard",
		"save",
		"close save=false",
		"quit",
		"launch",
		"open production_status.xlsm",
		"copy Chart!B3:AI63",
		"grab",
		"close save=false",
		"quit",
	}, env.calls)

	assert.Equal(t, []time.Duration{60 * time.Second}, rec.slept)
	assert.Equal(t, 60*time.Second, result.Waited)
	assert.False(t, result.RecalcConfirmed)

	assert.Equal(t, "daily_mail_image_2026-10-18.png", filepath.Base(result.ImagePath))
	_, err = os.Stat(result.ImagePath)
	assert.NoError(t, err)
}

func TestOrchestrator_CaptureWorkbookOverride(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Capture.WorkbookPath = filepath.Join(t.TempDir(), "chart_copy.xlsm")
	env := newFakeEnv()
	o, _ := newOrchestratorFor(t, cfg, env)

	_, err := o.Run(t.Context())
	require.NoError(t, err)
	assert.Contains(t, env.calls, "open chart_copy.xlsm")
}

func TestOrchestrator_PollsCompletion(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Recalc.PollInterval = 10 * time.Second
	env := newFakeEnv()
	env.watch = true
	env.doneAfter = 3
	o, rec := newOrchestratorFor(t, cfg, env)

	result, err := o.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second}, rec.slept)
	assert.Equal(t, 30*time.Second, result.Waited)
	assert.True(t, result.RecalcConfirmed)
}

func TestOrchestrator_PollBoundedBySettleDuration(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Recalc.SettleDuration = 25 * time.Second
	cfg.Recalc.PollInterval = 10 * time.Second
	env := newFakeEnv()
	env.watch = true
	env.doneAfter = 100
	o, rec := newOrchestratorFor(t, cfg, env)

	result, err := o.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 5 * time.Second}, rec.slept)
	assert.Equal(t, 25*time.Second, result.Waited)
	assert.False(t, result.RecalcConfirmed)
	assert.Equal(t, StateDone, o.State())
}

func TestOrchestrator_PollErrorFallsBackToFullWait(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Recalc.PollInterval = 10 * time.Second
	env := newFakeEnv()
	env.watch = true
	env.failOn["poll"] = errors.New("not supported")
	o, rec := newOrchestratorFor(t, cfg, env)

	result, err := o.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{10 * time.Second, 50 * time.Second}, rec.slept)
	assert.Equal(t, 60*time.Second, result.Waited)
	assert.False(t, result.RecalcConfirmed)
}

func TestOrchestrator_PollIgnoredWithoutWatcher(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Recalc.PollInterval = 10 * time.Second
	env := newFakeEnv()
	o, rec := newOrchestratorFor(t, cfg, env)

	_, err := o.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{60 * time.Second}, rec.slept)
}

func TestOrchestrator_Failures(t *testing.T) {
	tests := []struct {
		name      string
		failOn    string
		state     State
		wantCalls []string
	}{
		{
			name:      "launch",
			failOn:    "launch",
			state:     StateRecalculating,
			wantCalls: []string{"launch"},
		},
		{
			name:      "open",
			failOn:    "open",
			state:     StateRecalculating,
			wantCalls: []string{"launch", "open production_status.xlsm", "quit"},
		},
		{
			name:   "macro",
			failOn: "macro",
			state:  StateRecalculating,
			wantCalls: []string{
				"launch", "open production_status.xlsm", "macro refresh_dashboard", "close save=false", "quit",
			},
		},
		{
			name:   "save",
			failOn: "save",
			state:  StatePersisting,
			wantCalls: []string{
				"launch", "open production_status.xlsm", "macro refresh_dashboard", "save", "close save=false", "quit",
			},
		},
		{
			name:   "copy",
			failOn: "copy",
			state:  StateImageCapturing,
			wantCalls: []string{
				"launch", "open production_status.xlsm", "macro refresh_dashboard", "save", "close save=false", "quit",
				"launch", "open production_status.xlsm", "copy Chart!B3:AI63", "close save=false", "quit",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newFakeEnv()
			env.failOn[tt.failOn] = errors.New(tt.failOn + " failed")
			o, _ := newTestOrchestrator(t, env)

			result, err := o.Run(t.Context())
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, ErrOrchestration))

			var oerr *OrchestrationError
			require.True(t, errors.As(err, &oerr))
			assert.Equal(t, tt.state, oerr.State)
			assert.Equal(t, tt.wantCalls, env.calls)
			assert.Equal(t, StateFailed, o.State())
		})
	}
}

func TestOrchestrator_CaptureFailureCleansUp(t *testing.T) {
	env := newFakeEnv()
	env.failOn["grab"] = errors.New("clipboard empty")
	o, _ := newTestOrchestrator(t, env, WithSkipRecalc())

	_, err := o.Run(t.Context())
	require.Error(t, err)

	var oerr *OrchestrationError
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, StateImageCapturing, oerr.State)
	assert.Contains(t, err.Error(), "clipboard empty")
	assert.Equal(t, []string{
		"launch", "open production_status.xlsm", "copy Chart!B3:AI63", "grab", "close save=false", "quit",
	}, env.calls)
	assert.Equal(t, []State{StateIdle, StateImageCapturing, StateFailed}, o.History())
}

func TestOrchestrator_RejectsNonPNG(t *testing.T) {
	env := newFakeEnv()
	env.image = []byte("not an image")
	o, _ := newTestOrchestrator(t, env, WithSkipRecalc())

	_, err := o.Run(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a PNG")
	assert.Equal(t, "quit", env.calls[len(env.calls)-1])
}

func TestOrchestrator_EngineWithoutClipboard(t *testing.T) {
	env := newFakeEnv()
	env.noClipboard = true
	o, _ := newTestOrchestrator(t, env, WithSkipRecalc())

	_, err := o.Run(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clipboard")
	assert.Equal(t, []string{"launch", "quit"}, env.calls)
}

func TestOrchestrator_ContextCanceledDuringWait(t *testing.T) {
	env := newFakeEnv()
	cfg := newTestConfig(t)
	o, err := NewOrchestrator(cfg, env, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = o.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var oerr *OrchestrationError
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, StateWaiting, oerr.State)
	assert.Equal(t, []string{
		"launch", "open production_status.xlsm", "macro refresh_dashboard", "close save=false", "quit",
	}, env.calls)
}

func TestOrchestrator_SkipBoth(t *testing.T) {
	env := newFakeEnv()
	o, rec := newTestOrchestrator(t, env, WithSkipRecalc(), WithSkipCapture())

	result, err := o.Run(t.Context())
	require.NoError(t, err)
	assert.Empty(t, result.ImagePath)
	assert.Empty(t, env.calls)
	assert.Empty(t, rec.slept)
	assert.Equal(t, []State{StateIdle, StateDone}, o.History())
}

func TestOrchestrator_RunTwice(t *testing.T) {
	env := newFakeEnv()
	o, _ := newTestOrchestrator(t, env)

	_, err := o.Run(t.Context())
	require.NoError(t, err)
	_, err = o.Run(t.Context())
	require.NoError(t, err)
	assert.Len(t, env.calls, 24)
}

func TestNewOrchestrator_Errors(t *testing.T) {
	_, err := NewOrchestrator(nil, newFakeEnv(), zerolog.Nop())
	assert.Error(t, err)

	cfg := newTestConfig(t)
	_, err = NewOrchestrator(cfg, nil, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewOrchestrator(cfg, nil, zerolog.Nop(), WithSkipRecalc(), WithSkipCapture())
	assert.NoError(t, err)

	cfg.Capture.FilenameTemplate = "{{.Date"
	_, err = NewOrchestrator(cfg, newFakeEnv(), zerolog.Nop())
	assert.Error(t, err)
}

func TestIsAllowedTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateRecalculating, true},
		{StateIdle, StateImageCapturing, true},
		{StateIdle, StateDone, true},
		{StateIdle, StateWaiting, false},
		{StateRecalculating, StateWaiting, true},
		{StateRecalculating, StatePersisting, false},
		{StateWaiting, StatePersisting, true},
		{StatePersisting, StateImageCapturing, true},
		{StatePersisting, StateDone, true},
		{StateImageCapturing, StateDone, true},
		{StateImageCapturing, StateFailed, true},
		{StateWaiting, StateFailed, true},
		{StateDone, StateFailed, false},
		{StateFailed, StateIdle, false},
		{StateDone, StateRecalculating, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isAllowedTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestOrchestrationError(t *testing.T) {
	cause := errors.New("boom")
	err := &OrchestrationError{State: StateWaiting, Err: cause}

	assert.Equal(t, "orchestration failed while waiting: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrOrchestration)
}
