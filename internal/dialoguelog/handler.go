// Package dialoguelog writes the human-readable per-day dialogue log.
package dialoguelog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	filePrefix = "dialogue_"
	fileSuffix = ".log"
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// FileName returns the log file name for day.
func FileName(day time.Time) string {
	return filePrefix + day.Format(dateLayout) + fileSuffix
}

// dailyFile appends to one file per calendar day, reopening on rollover.
type dailyFile struct {
	mu     sync.Mutex
	dir    string
	day    string
	file   *os.File
	mirror io.Writer
}

func (d *dailyFile) write(at time.Time, line string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if day := at.Format(dateLayout); day != d.day || d.file == nil {
		if d.file != nil {
			_ = d.file.Close()
			d.file = nil
		}
		if err := os.MkdirAll(d.dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(d.dir, FileName(at)), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open dialogue log: %w", err)
		}
		d.file = f
		d.day = day
	}

	if _, err := io.WriteString(d.file, line); err != nil {
		return err
	}
	if d.mirror != nil {
		_, _ = io.WriteString(d.mirror, line)
	}
	return nil
}

func (d *dailyFile) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// lineHandler is a slog.Handler producing "HH:MM:SS - message" lines.
// Attributes, if any, follow the message as key=value pairs.
type lineHandler struct {
	out    *dailyFile
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	at := r.Time
	if at.IsZero() {
		at = time.Now()
	}

	var sb strings.Builder
	sb.WriteString(at.Format(timeLayout))
	sb.WriteString(" - ")
	sb.WriteString(r.Message)

	writeAttr := func(a slog.Attr) bool {
		if a.Equal(slog.Attr{}) {
			return true
		}
		sb.WriteByte(' ')
		sb.WriteString(h.prefix + a.Key)
		sb.WriteByte('=')
		sb.WriteString(a.Value.Resolve().String())
		return true
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(writeAttr)
	sb.WriteByte('\n')

	return h.out.write(at, sb.String())
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}
