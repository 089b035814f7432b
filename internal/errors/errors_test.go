package errors

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"
)

func TestStateErrorFormatting(t *testing.T) {
	cause := New("permission denied")
	err := NewStateError("load progress state", cause).WithPath("/run/progress.env")

	msg := err.Error()
	if !strings.Contains(msg, "state error [path=/run/progress.env]") {
		t.Errorf("missing path context: %q", msg)
	}
	if !strings.Contains(msg, "permission denied") {
		t.Errorf("missing cause: %q", msg)
	}
}

func TestStateErrorClassification(t *testing.T) {
	err := NewStateError("write quota state", ErrStateCorrupted)

	if !Is(err, ErrStateCorrupted) {
		t.Error("Is(err, ErrStateCorrupted) = false, want true")
	}
	if !IsStateFailure(err) {
		t.Error("IsStateFailure = false, want true")
	}
	if IsRetryable(err) {
		t.Error("state errors must not be retryable")
	}
	if GetSeverity(err) != SeverityCritical {
		t.Errorf("Severity = %v, want critical", GetSeverity(err))
	}
}

func TestStateFailureDetectionThroughWrapping(t *testing.T) {
	inner := NewStateError("load", New("short read"))
	wrapped := Wrap(inner, "check no-progress threshold")

	if !IsStateFailure(wrapped) {
		t.Error("IsStateFailure lost through Wrap")
	}
	if IsStateFailure(New("plain")) {
		t.Error("IsStateFailure true for unrelated error")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("topic cannot be empty").WithField("topic").WithValue("")

	msg := err.Error()
	if !strings.Contains(msg, "field=topic") {
		t.Errorf("missing field context: %q", msg)
	}
	if !IsValidation(err) {
		t.Error("IsValidation = false, want true")
	}
	if !Is(err, ErrInvalidInput) {
		t.Error("validation error should match ErrInvalidInput")
	}
	if IsRetryable(err) {
		t.Error("validation errors must not be retryable")
	}
	if !IsUserFacing(err) {
		t.Error("validation errors are user-facing")
	}
}

func TestTaskError(t *testing.T) {
	err := NewTaskError("spawn failed", ErrTaskStartFailed).
		WithLabel("auth-patterns").
		WithPID(4242)

	msg := err.Error()
	if !strings.Contains(msg, "task=auth-patterns") || !strings.Contains(msg, "pid=4242") {
		t.Errorf("missing context: %q", msg)
	}
	if !Is(err, ErrTaskStartFailed) {
		t.Error("Is(err, ErrTaskStartFailed) = false, want true")
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("waiting for research tasks", 10*time.Minute)

	if !strings.Contains(err.Error(), "10m0s") {
		t.Errorf("missing duration: %q", err.Error())
	}
	if !Is(err, ErrTimeout) {
		t.Error("timeout error should match ErrTimeout")
	}
	if !IsRetryable(err) {
		t.Error("timeouts are retryable by default")
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("template", "/etc/reloop/research.md")

	if !strings.Contains(err.Error(), "template '/etc/reloop/research.md' not found") {
		t.Errorf("unexpected message: %q", err.Error())
	}

	var nf *NotFoundError
	if !As(err, &nf) {
		t.Error("As failed for NotFoundError")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "iteration %d", 3) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrapf(ErrStateLocked, "save progress state for %s", "run-1")
	if !stderrors.Is(err, ErrStateLocked) {
		t.Error("wrapped sentinel not matched by errors.Is")
	}
}

func TestSeverityString(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.sev.String(); got != tt.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tt.sev, got, tt.want)
		}
	}
}

func TestGetSeverityDefaults(t *testing.T) {
	if GetSeverity(nil) != SeverityDebug {
		t.Error("nil error should report debug severity")
	}
	if GetSeverity(New("plain")) != SeverityError {
		t.Error("plain error should report error severity")
	}
}
