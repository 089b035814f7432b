// Package agent runs the coding-agent CLI as a subprocess.
package agent

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/calla-labs/reloop/internal/errors"
	"github.com/calla-labs/reloop/internal/logging"
)

// Result captures one completed agent invocation.
type Result struct {
	// ExitCode is the process exit code, or -1 if the process was killed
	// before exiting on its own.
	ExitCode int
	// Output is the combined stdout and stderr of the invocation.
	Output string
	// Duration is the wall-clock time the invocation took.
	Duration time.Duration
}

// Runner builds and executes agent invocations with a fixed command,
// base arguments, and optional model override.
type Runner struct {
	command string
	args    []string
	model   string
	dir     string
	logger  *logging.Logger
}

// NewRunner builds a runner. command must be non-empty; args are the base
// arguments prepended to every invocation. model, when non-empty, is
// passed via --model. dir is the working directory for spawned processes
// (empty means inherit).
func NewRunner(command string, args []string, model, dir string, logger *logging.Logger) (*Runner, error) {
	if command == "" {
		return nil, errors.NewValidationError("agent command must not be empty").
			WithField("command")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Runner{
		command: command,
		args:    append([]string(nil), args...),
		model:   model,
		dir:     dir,
		logger:  logger.WithPhase("agent"),
	}, nil
}

// Command builds an unstarted exec.Cmd for one invocation with prompt as
// the final argument. Callers that need process-handle control (the
// research pool) start and reap it themselves.
func (r *Runner) Command(ctx context.Context, prompt string) *exec.Cmd {
	args := append([]string(nil), r.args...)
	if r.model != "" {
		args = append(args, "--model", r.model)
	}
	args = append(args, prompt)

	cmd := exec.CommandContext(ctx, r.command, args...)
	cmd.Dir = r.dir
	return cmd
}

// Run executes one invocation to completion and returns its result. A
// non-zero exit is not an error here; callers decide what exit codes
// mean. Start failures and context cancellation are errors.
func (r *Runner) Run(ctx context.Context, prompt string) (*Result, error) {
	cmd := r.Command(ctx, prompt)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	r.logger.Debug("invoking agent", "command", r.command, "prompt_len", len(prompt))

	err := cmd.Run()
	elapsed := time.Since(start)

	res := &Result{
		ExitCode: -1,
		Output:   buf.String(),
		Duration: elapsed,
	}

	if err == nil {
		res.ExitCode = 0
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		if ctx.Err() != nil {
			return res, errors.Wrap(ctx.Err(), "agent invocation interrupted")
		}
		return res, nil
	}

	return res, errors.NewTaskError("agent invocation failed", err)
}
