package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestTeeLoggerWritesToAllHandlers(t *testing.T) {
	var first, second bytes.Buffer
	base := slog.New(slog.NewTextHandler(&first, &slog.HandlerOptions{Level: slog.LevelDebug}))
	extra := slog.NewTextHandler(&second, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger := TeeLogger(base, extra).With("run_id", "abc")
	logger.Info("hello")

	for name, buf := range map[string]*bytes.Buffer{"first": &first, "second": &second} {
		out := buf.String()
		if !strings.Contains(out, "hello") || !strings.Contains(out, "run_id=abc") {
			t.Fatalf("%s handler missing output: %q", name, out)
		}
	}
}

func TestFanoutRespectsPerHandlerLevels(t *testing.T) {
	var info, warn bytes.Buffer
	logger := slog.New(newFanoutHandler(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	))
	logger.Info("info only")

	if !strings.Contains(info.String(), "info only") {
		t.Fatalf("info handler missing record: %q", info.String())
	}
	if warn.Len() != 0 {
		t.Fatalf("warn handler should be empty, got %q", warn.String())
	}
}

func TestFanoutWithNoHandlersIsNoop(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when all handlers are nil")
	}
}
