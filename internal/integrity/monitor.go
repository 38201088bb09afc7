// Package integrity escalates focus-loss style signals toward an
// automatic lock while an attempt is active.
package integrity

import (
	"context"
	"fmt"
	"log/slog"
)

// Signal classes observed while an attempt is active.
type Signal string

const (
	// SignalFocusLost: the window or application lost foreground
	// focus. Counts as a warning.
	SignalFocusLost Signal = "focus_lost"
	// SignalUnload: the page is about to unload. The shell should ask
	// for confirmation; best-effort, no warning.
	SignalUnload Signal = "unload"
	// SignalBackground: a native shell backgrounded the app. The
	// attempt cannot be monitored further, so it is force-submitted.
	SignalBackground Signal = "background"
)

// AttemptControl is the slice of the state machine the monitor drives.
type AttemptControl interface {
	Warn(ctx context.Context, reason string) (count int, locked bool, err error)
	ForceSubmit(ctx context.Context) error
	InProgress() bool
	Preview() bool
}

// Outcome tells the shell what happened to a signal.
type Outcome struct {
	Signal       Signal `json:"signal"`
	Warnings     int    `json:"warnings"`
	Locked       bool   `json:"locked"`
	ConfirmClose bool   `json:"confirm_close,omitempty"`
	Submitted    bool   `json:"submitted,omitempty"`
}

// Monitor binds an attempt to its signal stream. Handle processes one
// signal synchronously; Notify/Run feed a channel for shells that push
// events instead of calling in.
type Monitor struct {
	ctl     AttemptControl
	log     *slog.Logger
	signals chan Signal
}

func NewMonitor(ctl AttemptControl, log *slog.Logger) *Monitor {
	return &Monitor{ctl: ctl, log: log, signals: make(chan Signal, 8)}
}

// Notify queues a signal without blocking. A full queue drops the
// signal rather than stalling the event source.
func (m *Monitor) Notify(sig Signal) {
	select {
	case m.signals <- sig:
	default:
		m.log.Warn("integrity signal dropped", "signal", sig)
	}
}

// Run consumes queued signals until ctx ends or the attempt leaves the
// in-progress state. Set up at attempt start, torn down at attempt
// end.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-m.signals:
			if _, err := m.Handle(ctx, sig); err != nil {
				m.log.Warn("handle integrity signal", "signal", sig, "err", err)
			}
			if !m.ctl.InProgress() {
				return
			}
		}
	}
}

// Handle applies one signal to the attempt. Signals against preview or
// finished attempts are no-ops.
func (m *Monitor) Handle(ctx context.Context, sig Signal) (Outcome, error) {
	out := Outcome{Signal: sig}
	if m.ctl.Preview() || !m.ctl.InProgress() {
		return out, nil
	}

	switch sig {
	case SignalFocusLost:
		count, locked, err := m.ctl.Warn(ctx, "window focus lost")
		out.Warnings = count
		out.Locked = locked
		return out, err
	case SignalUnload:
		out.ConfirmClose = true
		return out, nil
	case SignalBackground:
		err := m.ctl.ForceSubmit(ctx)
		out.Submitted = err == nil
		return out, err
	default:
		return out, fmt.Errorf("unknown integrity signal %q", sig)
	}
}
