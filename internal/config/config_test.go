package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	if cfg.Loop.NoProgressThreshold != 3 {
		t.Errorf("NoProgressThreshold = %d, want 3", cfg.Loop.NoProgressThreshold)
	}
	if cfg.Loop.SameErrorThreshold != 5 {
		t.Errorf("SameErrorThreshold = %d, want 5", cfg.Loop.SameErrorThreshold)
	}
	if cfg.Quota.HourlyCallLimit != 100 {
		t.Errorf("HourlyCallLimit = %d, want 100", cfg.Quota.HourlyCallLimit)
	}
	if cfg.Quota.WindowSeconds != 3600 {
		t.Errorf("WindowSeconds = %d, want 3600", cfg.Quota.WindowSeconds)
	}
	if cfg.Research.MaxConcurrent != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", cfg.Research.MaxConcurrent)
	}
	if cfg.Research.TimeoutSeconds != 600 {
		t.Errorf("TimeoutSeconds = %d, want 600", cfg.Research.TimeoutSeconds)
	}
	if cfg.Research.Model == "" {
		t.Error("research model default must not be empty")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("default config fails validation: %v", errs)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()

	if cfg.Quota.Window() != time.Hour {
		t.Errorf("Window = %v, want 1h", cfg.Quota.Window())
	}
	if cfg.Research.Timeout() != 10*time.Minute {
		t.Errorf("Timeout = %v, want 10m", cfg.Research.Timeout())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero no-progress threshold", func(c *Config) { c.Loop.NoProgressThreshold = 0 }, "loop.no_progress_threshold"},
		{"zero same-error threshold", func(c *Config) { c.Loop.SameErrorThreshold = 0 }, "loop.same_error_threshold"},
		{"negative max iterations", func(c *Config) { c.Loop.MaxIterations = -1 }, "loop.max_iterations"},
		{"zero call limit", func(c *Config) { c.Quota.HourlyCallLimit = 0 }, "quota.hourly_call_limit"},
		{"zero window", func(c *Config) { c.Quota.WindowSeconds = 0 }, "quota.window_seconds"},
		{"zero max concurrent", func(c *Config) { c.Research.MaxConcurrent = 0 }, "research.max_concurrent"},
		{"zero timeout", func(c *Config) { c.Research.TimeoutSeconds = 0 }, "research.timeout_seconds"},
		{"empty agent command", func(c *Config) { c.Agent.Command = "  " }, "agent.command"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("expected validation error, got none")
			}

			found := false
			for _, e := range errs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %s in %v", tt.field, errs)
			}
		})
	}
}

func TestValidationErrorsFormatting(t *testing.T) {
	errs := ValidationErrors{
		{Field: "quota.hourly_call_limit", Value: 0, Message: "must be at least 1"},
	}
	if errs.Error() != "quota.hourly_call_limit: must be at least 1 (got: 0)" {
		t.Errorf("unexpected single-error format: %q", errs.Error())
	}

	errs = append(errs, ValidationError{Field: "loop.max_iterations", Value: -1, Message: "must be non-negative (0 = unlimited)"})
	msg := errs.Error()
	if msg == "" || len(msg) < 20 {
		t.Errorf("unexpected multi-error format: %q", msg)
	}
}

func TestResolveStateDir(t *testing.T) {
	tests := []struct {
		name     string
		stateDir string
		baseDir  string
		want     string
	}{
		{"empty uses default", "", "/work", filepath.Join("/work", ".reloop")},
		{"relative resolved", "state", "/work", filepath.Join("/work", "state")},
		{"absolute kept", "/var/lib/reloop", "/work", "/var/lib/reloop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PathsConfig{StateDir: tt.stateDir}
			if got := p.ResolveStateDir(tt.baseDir); got != tt.want {
				t.Errorf("ResolveStateDir = %q, want %q", got, tt.want)
			}
		})
	}
}
