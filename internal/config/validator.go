package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/calla-labs/reloop/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "quota.hourly_call_limit")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return logging.ValidLevels()
}

// Validate checks the Config for invalid values and returns all validation
// errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLoop()...)
	errors = append(errors, c.validateQuota()...)
	errors = append(errors, c.validateResearch()...)
	errors = append(errors, c.validateAgent()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateLoop() []ValidationError {
	var errors []ValidationError

	if c.Loop.NoProgressThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "loop.no_progress_threshold",
			Value:   c.Loop.NoProgressThreshold,
			Message: "must be at least 1",
		})
	}
	if c.Loop.SameErrorThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "loop.same_error_threshold",
			Value:   c.Loop.SameErrorThreshold,
			Message: "must be at least 1",
		})
	}
	if c.Loop.MaxIterations < 0 {
		errors = append(errors, ValidationError{
			Field:   "loop.max_iterations",
			Value:   c.Loop.MaxIterations,
			Message: "must be non-negative (0 = unlimited)",
		})
	}

	return errors
}

func (c *Config) validateQuota() []ValidationError {
	var errors []ValidationError

	if c.Quota.HourlyCallLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "quota.hourly_call_limit",
			Value:   c.Quota.HourlyCallLimit,
			Message: "must be at least 1",
		})
	}
	if c.Quota.WindowSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "quota.window_seconds",
			Value:   c.Quota.WindowSeconds,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateResearch() []ValidationError {
	var errors []ValidationError

	if c.Research.MaxConcurrent < 1 {
		errors = append(errors, ValidationError{
			Field:   "research.max_concurrent",
			Value:   c.Research.MaxConcurrent,
			Message: "must be at least 1",
		})
	}
	if c.Research.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "research.timeout_seconds",
			Value:   c.Research.TimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateAgent() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Agent.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "agent.command",
			Value:   c.Agent.Command,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
