// Package common holds small helpers shared by the pipeline, the server and the CLI.
package common

import (
	"fmt"
	"log/slog"
	"time"
)

// Timer measures one named processing stage.
type Timer struct {
	name     string
	start    time.Time
	duration time.Duration
	stopped  bool
}

// NewTimer starts an unnamed timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// NewNamedTimer starts a timer for the given stage.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop records the elapsed time and returns it. Later calls return the first result.
func (t *Timer) Stop() time.Duration {
	if !t.stopped {
		t.duration = time.Since(t.start)
		t.stopped = true
	}
	return t.duration
}

// Duration returns the recorded duration, or the running time if the timer is not stopped.
func (t *Timer) Duration() time.Duration {
	if !t.stopped {
		return time.Since(t.start)
	}
	return t.duration
}

// Name returns the stage name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// Attr returns the duration as a "<name>_ms" log attribute.
func (t *Timer) Attr() slog.Attr {
	key := "duration_ms"
	if t.name != "" {
		key = t.name + "_ms"
	}
	return slog.Int64(key, t.Duration().Milliseconds())
}

// String returns a formatted string representation of the timer.
func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, t.Duration())
	}
	return t.Duration().String()
}
