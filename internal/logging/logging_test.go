package logging

import (
	"testing"

	"github.com/creativeops/thumbselect/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{"json stdout", config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}},
		{"console stderr", config.LoggingConfig{Level: "debug", Format: "console", Output: "stderr"}},
		{"bad level falls back", config.LoggingConfig{Level: "nope", Format: "json", Output: "stdout"}},
		{"empty output defaults to stdout", config.LoggingConfig{Level: "warn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if logger == nil {
				t.Fatal("logger should not be nil")
			}

			// Exercise the level methods, none should panic.
			logger.Debugf("debug %d", 1)
			logger.Infof("info %d", 2)
			logger.Warnf("warn %d", 3)
			logger.Errorf("error %d", 4)
			logger.WithField("asset", "a-1").Info("with field")
		})
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.Info("discarded")
	logger.Err(nil, "also discarded")
}

func TestNewLoggerBadFile(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "info", Output: "/nonexistent-dir/x/y.log"})
	if err == nil {
		t.Error("expected error opening log file in missing directory")
	}
}
