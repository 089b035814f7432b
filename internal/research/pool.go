package research

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/calla-labs/reloop/internal/agent"
	"github.com/calla-labs/reloop/internal/errors"
	"github.com/calla-labs/reloop/internal/logging"
)

// Pool limits and tracking defaults.
const (
	DefaultMaxConcurrent = 3
	DefaultTaskTimeout   = 600 * time.Second
	livenessPollInterval = 250 * time.Millisecond
)

// task is one tracked research subprocess. done is closed by the reaper
// goroutine once the process has been waited on; exitErr and timedOut
// are only read after done is closed.
type task struct {
	label      string
	topic      string
	outputPath string
	cmd        *exec.Cmd
	startedAt  time.Time
	done       chan struct{}
	exitErr    error
	timedOut   bool
}

func (t *task) alive() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// TaskStatus is a point-in-time snapshot of one tracked task. Err and
// TimedOut are only meaningful once Running is false.
type TaskStatus struct {
	Label      string
	Topic      string
	OutputPath string
	Running    bool
	Elapsed    time.Duration
	TimedOut   bool
	Err        error
}

// Options configures a Pool. Zero values fall back to the defaults.
type Options struct {
	MaxConcurrent int
	Timeout       time.Duration
	OutputDir     string
	TemplateFile  string
}

// Pool runs research agents as concurrent subprocesses, capped at
// MaxConcurrent, each with a hard per-task timeout. Liveness is observed
// by polling, not by blocking on individual processes, so callers can
// interleave waits with other work.
type Pool struct {
	mu     sync.Mutex
	tasks  []*task
	runner *agent.Runner
	opts   Options
	logger *logging.Logger
}

// NewPool builds a pool that spawns tasks through runner.
func NewPool(runner *agent.Runner, opts Options, logger *logging.Logger) *Pool {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTaskTimeout
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Pool{
		runner: runner,
		opts:   opts,
		logger: logger.WithPhase("research"),
	}
}

// CanSpawn reports whether the pool has room for another task.
func (p *Pool) CanSpawn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.countActiveLocked() < p.opts.MaxConcurrent
}

// Spawn starts a research task for topic and returns its label. It fails
// with a validation error for an empty or unsanitizable topic or a
// missing output directory, and with a task error when the pool is full,
// the label is already running, or the process cannot start.
func (p *Pool) Spawn(ctx context.Context, topic string) (string, error) {
	if topic == "" {
		return "", errors.NewValidationError("research topic must not be empty").
			WithField("topic")
	}
	label := SanitizeLabel(topic)
	if label == "" {
		return "", errors.NewValidationError("research topic has no usable characters").
			WithField("topic").WithValue(topic)
	}
	if p.opts.OutputDir == "" {
		return "", errors.NewValidationError("research output dir must not be empty").
			WithField("output dir")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.countActiveLocked() >= p.opts.MaxConcurrent {
		return "", errors.NewTaskError("research pool is at capacity", nil).
			WithLabel(label)
	}
	for _, t := range p.tasks {
		if t.label == label && t.alive() {
			return "", errors.NewTaskError("research task already running", nil).
				WithLabel(label)
		}
	}

	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return "", errors.NewTaskError("creating research output dir", err).
			WithLabel(label)
	}

	outputPath := OutputPath(topic, p.opts.OutputDir)
	prompt := BuildPrompt(topic, outputPath, p.opts.TemplateFile)

	cmd := p.runner.Command(ctx, prompt)
	if err := cmd.Start(); err != nil {
		return "", errors.NewTaskError("starting research task", errors.Join(errors.ErrTaskStartFailed, err)).
			WithLabel(label)
	}

	t := &task{
		label:      label,
		topic:      topic,
		outputPath: outputPath,
		cmd:        cmd,
		startedAt:  time.Now(),
		done:       make(chan struct{}),
	}
	go func() {
		t.exitErr = cmd.Wait()
		close(t.done)
	}()

	p.tasks = append(p.tasks, t)
	p.logger.WithTask(label).Info("research task started",
		"pid", cmd.Process.Pid, "output", outputPath)
	return label, nil
}

// CountActive returns the number of tasks still running.
func (p *Pool) CountActive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.countActiveLocked()
}

func (p *Pool) countActiveLocked() int {
	n := 0
	for _, t := range p.tasks {
		if t.alive() {
			n++
		}
	}
	return n
}

// CountTotal returns the number of tasks tracked, running or finished.
func (p *Pool) CountTotal() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// IsRunning reports whether any tracked task is still alive.
func (p *Pool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.countActiveLocked() > 0
}

// IsTaskRunning reports whether a task with the given label is still
// alive. The label is sanitized first, so callers may pass the original
// topic.
func (p *Pool) IsTaskRunning(label string) bool {
	label = SanitizeLabel(label)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.tasks {
		if t.label == label && t.alive() {
			return true
		}
	}
	return false
}

// Statuses returns a snapshot of every tracked task.
func (p *Pool) Statuses() []TaskStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TaskStatus, 0, len(p.tasks))
	for _, t := range p.tasks {
		st := TaskStatus{
			Label:      t.label,
			Topic:      t.topic,
			OutputPath: t.outputPath,
			Running:    t.alive(),
			Elapsed:    time.Since(t.startedAt),
		}
		if !st.Running {
			st.TimedOut = t.timedOut
			st.Err = t.exitErr
		}
		out = append(out, st)
	}
	return out
}

// WaitForAll blocks until every tracked task has finished, killing any
// task that exceeds the per-task timeout. It returns ctx.Err if the
// context is canceled first; still-running tasks are left to KillAll.
func (p *Pool) WaitForAll(ctx context.Context) error {
	ticker := time.NewTicker(livenessPollInterval)
	defer ticker.Stop()

	for {
		if p.reapAndCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitForAny blocks until at least one tracked task has finished and
// returns its label. With no tasks tracked it returns immediately with
// an empty label. Timeout enforcement runs here too, so a hung task
// cannot stall the wait past its deadline.
func (p *Pool) WaitForAny(ctx context.Context) (string, error) {
	ticker := time.NewTicker(livenessPollInterval)
	defer ticker.Stop()

	for {
		p.reapAndCount()

		p.mu.Lock()
		if len(p.tasks) == 0 {
			p.mu.Unlock()
			return "", nil
		}
		for _, t := range p.tasks {
			if !t.alive() {
				label := t.label
				p.mu.Unlock()
				return label, nil
			}
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// reapAndCount kills tasks past their deadline and returns the number
// still alive.
func (p *Pool) reapAndCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	alive := 0
	for _, t := range p.tasks {
		if !t.alive() {
			continue
		}
		if time.Since(t.startedAt) > p.opts.Timeout {
			t.timedOut = true
			p.logger.WithTask(t.label).Warn("research task timed out, killing",
				"elapsed", time.Since(t.startedAt).Round(time.Second).String())
			if t.cmd.Process != nil {
				_ = t.cmd.Process.Kill()
			}
			// Still alive until the reaper observes the exit.
		}
		alive++
	}
	return alive
}

// KillAll terminates every running task and empties the tracking list.
// Calling it again, or with nothing tracked, is a no-op.
func (p *Pool) KillAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range p.tasks {
		if !t.alive() {
			continue
		}
		p.logger.Info("killing research task", "label", t.label)
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
	}
	p.tasks = nil
}

// ResetState clears all task tracking without attempting termination.
// Processes still running keep running; their reaper goroutines reap
// them when they exit. Use KillAll to terminate and forget.
func (p *Pool) ResetState() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = nil
}
