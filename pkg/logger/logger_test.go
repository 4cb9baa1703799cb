package logger

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestScope(t *testing.T) {
	tests := []struct {
		name  string
		scope string
		want  string
	}{
		{"basic scope", "ingest", "ingest"},
		{"nested scope", "publish.queue", "publish.queue"},
		{"empty scope", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := Scope(tt.scope)
			if attr.Key != "scope" {
				t.Errorf("Scope() key = %q, want %q", attr.Key, "scope")
			}
			if attr.Value.String() != tt.want {
				t.Errorf("Scope() value = %q, want %q", attr.Value.String(), tt.want)
			}
		})
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"simple error", errors.New("something went wrong")},
		{"nil error", nil},
		{"wrapped error", errors.Join(errors.New("outer"), errors.New("inner"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := Error(tt.err)
			if attr.Key != "error" {
				t.Errorf("Error() key = %q, want %q", attr.Key, "error")
			}
			if got := attr.Value.Any(); got != tt.err {
				t.Errorf("Error() value = %v, want %v", got, tt.err)
			}
		})
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		enabled  slog.Level
		disabled slog.Level
		hasOff   bool
	}{
		{"default is info", "", slog.LevelInfo, slog.LevelDebug, true},
		{"debug", "debug", slog.LevelDebug, 0, false},
		{"info", "info", slog.LevelInfo, slog.LevelDebug, true},
		{"warn", "warn", slog.LevelWarn, slog.LevelInfo, true},
		{"warning alias", "warning", slog.LevelWarn, slog.LevelInfo, true},
		{"error", "error", slog.LevelError, slog.LevelWarn, true},
		{"case insensitive", "DeBuG", slog.LevelDebug, 0, false},
		{"invalid falls back to info", "verbose", slog.LevelInfo, slog.LevelDebug, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("GO_ENV", "")
			t.Setenv("LOG_JSON", "")
			t.Setenv("LOG_FILE", "")

			log := NewLogger()
			if log == nil {
				t.Fatal("NewLogger() returned nil")
			}
			if !log.Enabled(nil, tt.enabled) {
				t.Errorf("level %v should be enabled for LOG_LEVEL=%q", tt.enabled, tt.level)
			}
			if tt.hasOff && log.Enabled(nil, tt.disabled) {
				t.Errorf("level %v should be disabled for LOG_LEVEL=%q", tt.disabled, tt.level)
			}
		})
	}
}

func TestNewLogger_ProductionJSON(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GO_ENV", "production")
	t.Setenv("LOG_JSON", "")
	t.Setenv("LOG_FILE", "")

	log := NewLogger()
	if log == nil {
		t.Fatal("NewLogger() returned nil")
	}
	if !log.Enabled(nil, slog.LevelInfo) {
		t.Error("NewLogger() should have info level enabled in production")
	}
}

func TestNewLogger_JSONFlag(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", "on"} {
		t.Setenv("GO_ENV", "")
		t.Setenv("LOG_JSON", v)
		t.Setenv("LOG_FILE", "")

		if log := NewLogger(); log == nil {
			t.Fatalf("NewLogger() returned nil for LOG_JSON=%s", v)
		}
	}
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anivault.log")

	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GO_ENV", "")
	t.Setenv("LOG_JSON", "")
	t.Setenv("LOG_FILE", path)

	log := NewLogger()
	log.Info("file output probe")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading LOG_FILE: %v", err)
	}
	if len(data) == 0 {
		t.Error("LOG_FILE should contain the logged line")
	}
}

func TestNewLogger_FileOpenFailure(t *testing.T) {
	// Directory path cannot be opened as a file; logger must still work.
	t.Setenv("LOG_FILE", t.TempDir())
	t.Setenv("GO_ENV", "")
	t.Setenv("LOG_JSON", "")

	if log := NewLogger(); log == nil {
		t.Fatal("NewLogger() should fall back to stdout when LOG_FILE cannot be opened")
	}
}
