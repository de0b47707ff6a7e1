package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Scheduler.TickInterval != 15*time.Minute {
		t.Errorf("tick interval = %v, want 15m", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.Workers != 3 {
		t.Errorf("workers = %d, want 3", cfg.Scheduler.Workers)
	}
	if cfg.Scheduler.CleanupInterval != time.Hour {
		t.Errorf("cleanup interval = %v, want 1h", cfg.Scheduler.CleanupInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCHEDULER_TICK_MINUTES", "5")
	t.Setenv("SCHEDULER_WORKERS", "8")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Scheduler.TickInterval != 5*time.Minute {
		t.Errorf("tick interval = %v, want 5m", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Scheduler.Workers)
	}
	if cfg.Logging.Level != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"SCHEDULER_TICK_MINUTES": "0",
		"SCHEDULER_WORKERS":      "-1",
		"LOG_LEVEL":              "verbose",
		"LOG_FORMAT":             "xml",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("Load accepted %s=%s", key, value)
			}
		})
	}
}
