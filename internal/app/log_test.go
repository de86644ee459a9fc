package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMcsHandler_Handle(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "record migrated",
			want:    "2026-03-14T09:26:53Z\tINFO\top-123\trecord migrated\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "record skipped",
			want:    "2026-03-14T09:26:53Z\tDEBUG\top-456\trecord skipped\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelWarn,
			message: "record failed",
			attrs:   []slog.Attr{slog.String("file", "FILE-0001"), slog.Int("size", 42)},
			want:    "2026-03-14T09:26:53Z\tWARN\top-789\trecord failed\tfile=FILE-0001\tsize=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newHandler(tt.opID, sink{w: &buf, min: slog.LevelDebug})

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestMcsHandler_SinkLevels(t *testing.T) {
	var file, stderr bytes.Buffer
	h := newHandler("op-1",
		sink{w: &file, min: slog.LevelDebug},
		sink{w: &stderr, min: slog.LevelInfo},
	)
	logger := slog.New(h)

	logger.Debug("record skipped", "file", "a")
	logger.Info("record migrated", "file", "b")

	if got := strings.Count(file.String(), "\n"); got != 2 {
		t.Errorf("file sink got %d lines, want 2", got)
	}
	if strings.Contains(stderr.String(), "record skipped") {
		t.Error("stderr sink received a debug line")
	}
	if !strings.Contains(stderr.String(), "record migrated") {
		t.Error("stderr sink missing info line")
	}
}

func TestMcsHandler_Enabled(t *testing.T) {
	h := newHandler("op-1", sink{w: &bytes.Buffer{}, min: slog.LevelWarn})

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Enabled(INFO) = true with a WARN sink")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("Enabled(ERROR) = false with a WARN sink")
	}
}

func TestMcsHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler("op-1", sink{w: &buf, min: slog.LevelDebug})
	h.attrs = []slog.Attr{slog.String("a", "1")}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "engine")}).(*mcsHandler)
	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "upload", 0)
	r.AddAttrs(slog.String("key", "abc"))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{"a=1", "component=engine", "key=abc"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %s", got, want)
		}
	}
}

func TestMcsHandler_ConcurrentLinesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler("op-1", sink{w: &buf, min: slog.LevelDebug}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Info("record migrated", "file", "FILE", "size", j)
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 400 {
		t.Fatalf("got %d lines, want 400", len(lines))
	}
	for _, l := range lines {
		if strings.Count(l, "\t") != 5 {
			t.Fatalf("torn log line: %q", l)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	var stderr bytes.Buffer

	logger, f, err := newLogger(dir, "test-op", false, &stderr)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Debug("debug only in file")
	logger.Info("visible everywhere")
	f.Close()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "debug only in file") || !strings.Contains(string(data), "visible everywhere") {
		t.Errorf("log file = %q", data)
	}
	if strings.Contains(stderr.String(), "debug only in file") {
		t.Errorf("stderr received debug line: %q", stderr.String())
	}
}
