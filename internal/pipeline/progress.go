package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress while a batch of images is processed. All calls come
// from the goroutine collecting results.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	// OnError reports the failing image index.
	OnError(index int, err error)
}

// ConsoleProgressCallback draws a one-line progress bar.
type ConsoleProgressCallback struct {
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration

	mu         sync.Mutex
	start      time.Time
	lastUpdate time.Time
}

// NewConsoleProgressCallback creates a progress bar writing to writer (stderr when nil).
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
	}
}

// OnStart implements ProgressCallback.
func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.start = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d tables", c.prefix, total)
}

// OnProgress implements ProgressCallback. Updates are throttled except for the last one.
func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if current < total && now.Sub(c.lastUpdate) < c.updateInterval {
		return
	}
	c.lastUpdate = now
	if total <= 0 {
		return
	}

	filled := c.width * current / total
	bar := strings.Repeat("#", filled) + strings.Repeat(".", c.width-filled)
	line := fmt.Sprintf("\r%s[%s] %d/%d tables", c.prefix, bar, current, total)
	if elapsed := now.Sub(c.start); elapsed > 0 && current > 0 {
		line += fmt.Sprintf(" %.1f/s", float64(current)/elapsed.Seconds())
	}
	_, _ = fmt.Fprint(c.writer, line)
}

// OnComplete implements ProgressCallback.
func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sdone in %v\n", c.prefix, time.Since(c.start).Round(time.Millisecond))
}

// OnError implements ProgressCallback.
func (c *ConsoleProgressCallback) OnError(index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%simage %d failed: %v\n", c.prefix, index, err)
}

// LogProgressCallback reports progress through slog every Interval images.
type LogProgressCallback struct {
	Logger   *slog.Logger
	Level    slog.Level
	Interval int

	mu      sync.Mutex
	start   time.Time
	lastLog int
}

// NewLogProgressCallback logs at level every 10 images.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{Logger: logger, Level: level, Interval: 10}
}

// OnStart implements ProgressCallback.
func (l *LogProgressCallback) OnStart(total int) {
	l.mu.Lock()
	l.start = time.Now()
	l.lastLog = 0
	l.mu.Unlock()
	l.Logger.Log(context.Background(), l.Level, "Extracting tables", "total", total)
}

// OnProgress implements ProgressCallback.
func (l *LogProgressCallback) OnProgress(current, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current-l.lastLog < l.Interval && current != total {
		return
	}
	l.lastLog = current
	l.Logger.Log(context.Background(), l.Level, "Extraction progress",
		"current", current,
		"total", total,
		"elapsed_ms", time.Since(l.start).Milliseconds())
}

// OnComplete implements ProgressCallback.
func (l *LogProgressCallback) OnComplete() {
	l.mu.Lock()
	elapsed := time.Since(l.start)
	l.mu.Unlock()
	l.Logger.Log(context.Background(), l.Level, "Extraction finished", "elapsed_ms", elapsed.Milliseconds())
}

// OnError implements ProgressCallback.
func (l *LogProgressCallback) OnError(index int, err error) {
	l.Logger.Error("Extraction failed", "image", index, "error", err)
}
