package integrity

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeControl implements AttemptControl with the same escalation rules
// as the real machine: three warnings lock, a lock or submit ends the
// attempt.
type fakeControl struct {
	mu        sync.Mutex
	preview   bool
	warnings  int
	locked    bool
	submitted int
	reasons   []string
}

func (f *fakeControl) Warn(_ context.Context, reason string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked {
		return f.warnings, true, nil
	}
	f.warnings++
	f.reasons = append(f.reasons, reason)
	f.locked = f.warnings >= 3
	return f.warnings, f.locked, nil
}

func (f *fakeControl) ForceSubmit(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted++
	return nil
}

func (f *fakeControl) InProgress() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.locked && f.submitted == 0
}

func (f *fakeControl) Preview() bool { return f.preview }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHandle_FocusLostEscalatesToLock(t *testing.T) {
	ctx := context.Background()
	ctl := &fakeControl{}
	mon := NewMonitor(ctl, discard())

	out, err := mon.Handle(ctx, SignalFocusLost)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Warnings)
	assert.False(t, out.Locked)

	_, err = mon.Handle(ctx, SignalFocusLost)
	require.NoError(t, err)

	out, err = mon.Handle(ctx, SignalFocusLost)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Warnings)
	assert.True(t, out.Locked)
	assert.Equal(t, []string{"window focus lost", "window focus lost", "window focus lost"}, ctl.reasons)

	// signals against a finished attempt are no-ops
	out, err = mon.Handle(ctx, SignalFocusLost)
	require.NoError(t, err)
	assert.Zero(t, out.Warnings)
	assert.Equal(t, 3, ctl.warnings)
}

func TestHandle_UnloadAsksForConfirmation(t *testing.T) {
	ctl := &fakeControl{}
	mon := NewMonitor(ctl, discard())

	out, err := mon.Handle(context.Background(), SignalUnload)
	require.NoError(t, err)
	assert.True(t, out.ConfirmClose)
	assert.Zero(t, ctl.warnings, "unload never warns")
}

func TestHandle_BackgroundForcesSubmit(t *testing.T) {
	ctl := &fakeControl{}
	mon := NewMonitor(ctl, discard())

	out, err := mon.Handle(context.Background(), SignalBackground)
	require.NoError(t, err)
	assert.True(t, out.Submitted)
	assert.Equal(t, 1, ctl.submitted)
}

func TestHandle_PreviewIgnoresSignals(t *testing.T) {
	ctl := &fakeControl{preview: true}
	mon := NewMonitor(ctl, discard())

	out, err := mon.Handle(context.Background(), SignalFocusLost)
	require.NoError(t, err)
	assert.Zero(t, out.Warnings)
	assert.Zero(t, ctl.warnings)

	_, err = mon.Handle(context.Background(), SignalBackground)
	require.NoError(t, err)
	assert.Zero(t, ctl.submitted)
}

func TestHandle_UnknownSignal(t *testing.T) {
	mon := NewMonitor(&fakeControl{}, discard())
	_, err := mon.Handle(context.Background(), Signal("telepathy"))
	assert.Error(t, err)
}

func TestRun_DrainsUntilAttemptEnds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ctl := &fakeControl{}
	mon := NewMonitor(ctl, discard())

	done := make(chan struct{})
	go func() {
		mon.Run(ctx)
		close(done)
	}()

	mon.Notify(SignalFocusLost)
	mon.Notify(SignalFocusLost)
	mon.Notify(SignalFocusLost)

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("Run did not stop after the attempt locked")
	}

	require.Eventually(t, func() bool {
		ctl.mu.Lock()
		defer ctl.mu.Unlock()
		return ctl.locked
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, ctl.warnings)
}
