package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// lineHandler is a slog.Handler that renders "[YYYY-MM-DD] LEVEL: message".
// Attributes are dropped; the message already carries the summary.
type lineHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler
}

func (h *lineHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	line := fmt.Sprintf("[%s] %s: %s\n", r.Time.Format("2006-01-02"), r.Level.String(), r.Message)
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line)
	return err
}

func (h *lineHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *lineHandler) WithGroup(string) slog.Handler { return h }

// LogSink appends one line per event to a writer, usually the audit log file.
type LogSink struct {
	handler *lineHandler
	closer  io.Closer
}

// NewLogSink writes lines to w.
func NewLogSink(w io.Writer) *LogSink {
	return &LogSink{handler: &lineHandler{mu: &sync.Mutex{}, w: w, level: slog.LevelInfo}}
}

// OpenLogFile opens (creating if needed) an append-only audit log at path.
func OpenLogFile(path string) (*LogSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create audit log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	sink := NewLogSink(f)
	sink.closer = f
	return sink, nil
}

// Append writes the event's summary at INFO.
func (s *LogSink) Append(ctx context.Context, event Event) error {
	record := slog.NewRecord(event.Timestamp, slog.LevelInfo, event.Summary(), 0)
	if err := s.handler.Handle(ctx, record); err != nil {
		return fmt.Errorf("write audit line: %w", err)
	}
	return nil
}

// Close releases the underlying file, if any.
func (s *LogSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
