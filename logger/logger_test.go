package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(Options{Dir: dir, Level: "warn"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger.GetLevel() != logrus.WarnLevel {
		t.Errorf("expected warn level, got %s", logger.GetLevel())
	}

	logger.Warn("disk check")

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Errorf("expected log file to contain the entry")
	}
}

func TestNewLoggerDebugOverridesLevel(t *testing.T) {
	logger, err := NewLogger(Options{Level: "error", Debug: true})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %s", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*logrus.TextFormatter); !ok {
		t.Errorf("expected text formatter in debug mode")
	}
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	logger, err := NewLogger(Options{Level: "loud"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected info level fallback, got %s", logger.GetLevel())
	}
}
