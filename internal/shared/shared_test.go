package shared

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want log.Level
	}{
		{name: "debug", in: "debug", want: log.DebugLevel},
		{name: "mixed case warn", in: "  WARN ", want: log.WarnLevel},
		{name: "warning alias", in: "warning", want: log.WarnLevel},
		{name: "error", in: "error", want: log.ErrorLevel},
		{name: "empty defaults to info", in: "", want: log.InfoLevel},
		{name: "unknown defaults to info", in: "verbose", want: log.InfoLevel},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("writes to provided writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		WithLogger(logger, "component", "test").Info("hello")

		out := buf.String()
		if !strings.Contains(out, "hello") {
			t.Errorf("expected log output to contain message, got %q", out)
		}
		if !strings.Contains(out, "component=test") {
			t.Errorf("expected log output to contain key-value pair, got %q", out)
		}
	})

	t.Run("respects level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		SetLogLevel(logger, log.ErrorLevel)
		logger.Info("suppressed")

		if buf.Len() != 0 {
			t.Errorf("expected no output below error level, got %q", buf.String())
		}
	})
}

func TestIdentifiers(t *testing.T) {
	t.Run("GenerateID", func(t *testing.T) {
		id := GenerateID()
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("expected a valid uuid, got %q: %v", id, err)
		}
		if id == GenerateID() {
			t.Error("expected unique ids")
		}
	})

	t.Run("GenerateState", func(t *testing.T) {
		state, err := GenerateState()
		if err != nil {
			t.Fatalf("GenerateState() error = %v", err)
		}
		if len(state) < 32 {
			t.Errorf("expected state of at least 32 chars, got %d", len(state))
		}
		if strings.ContainsAny(state, "+/=") {
			t.Errorf("expected URL-safe state, got %q", state)
		}
	})
}

func TestInitTracing(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		shutdown, err := InitTracing(t.Context(), TelemetryConfig{})
		if err != nil {
			t.Fatalf("InitTracing() error = %v", err)
		}
		if err := shutdown(t.Context()); err != nil {
			t.Errorf("shutdown() error = %v", err)
		}
	})

	t.Run("enabled without exporter", func(t *testing.T) {
		shutdown, err := InitTracing(t.Context(), TelemetryConfig{Enabled: true, ServiceName: "vinyl-test"})
		if err != nil {
			t.Fatalf("InitTracing() error = %v", err)
		}
		if err := shutdown(t.Context()); err != nil {
			t.Errorf("shutdown() error = %v", err)
		}
	})
}

func TestBrowserCommand(t *testing.T) {
	t.Run("platform defaults", func(t *testing.T) {
		t.Setenv("BROWSER", "")
		for goos, want := range map[string]string{"darwin": "open", "linux": "xdg-open", "windows": "rundll32"} {
			argv, err := browserCommand(goos, "https://example.test")
			if err != nil {
				t.Fatalf("browserCommand(%s) error = %v", goos, err)
			}
			if argv[0] != want || argv[len(argv)-1] != "https://example.test" {
				t.Errorf("browserCommand(%s) = %v", goos, argv)
			}
		}
	})

	t.Run("BROWSER overrides", func(t *testing.T) {
		t.Setenv("BROWSER", "firefox --new-tab")
		argv, err := browserCommand("linux", "https://example.test")
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if !slices.Equal(argv, []string{"firefox", "--new-tab", "https://example.test"}) {
			t.Errorf("unexpected argv %v", argv)
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		t.Setenv("BROWSER", "")
		if _, err := browserCommand("plan9", "https://example.test"); !errors.Is(err, ErrNotImplemented) {
			t.Errorf("expected ErrNotImplemented, got %v", err)
		}
	})
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "vinyl.log")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	logger.Info("needle down")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "needle down") {
		t.Errorf("expected log line in file, got %q", data)
	}
}
