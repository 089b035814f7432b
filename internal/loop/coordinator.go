// Package loop drives the iterative agent workflow: invoke the agent,
// observe story completion, and stop on completion, stuck detection, or
// budget exhaustion.
package loop

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/calla-labs/reloop/internal/agent"
	"github.com/calla-labs/reloop/internal/config"
	"github.com/calla-labs/reloop/internal/errors"
	"github.com/calla-labs/reloop/internal/logging"
	"github.com/calla-labs/reloop/internal/progress"
	"github.com/calla-labs/reloop/internal/quota"
)

// Outcome is how a run ended.
type Outcome int

const (
	// OutcomeComplete means every story was done or the agent emitted
	// its completion promise.
	OutcomeComplete Outcome = iota
	// OutcomeStuck means a stuck-detection threshold tripped.
	OutcomeStuck
	// OutcomeMaxIterations means the iteration cap was reached first.
	OutcomeMaxIterations
	// OutcomeCanceled means the context ended the run.
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeStuck:
		return "stuck"
	case OutcomeMaxIterations:
		return "max-iterations"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Callbacks are optional hooks invoked at loop milestones. Nil fields
// are skipped.
type Callbacks struct {
	OnIterationStart func(iteration int)
	OnIterationEnd   func(iteration int, result *agent.Result, progressed bool)
	OnQuotaWait      func(secondsUntilReset int)
	OnStuck          func(status string)
	OnComplete       func(iteration int, reason string)
}

// errorTailLimit bounds how much trailing output feeds the error
// fingerprint. Leading output varies run to run (timestamps, progress
// chatter); the tail carries the actual failure.
const errorTailLimit = 2000

var promisePattern = regexp.MustCompile(`(?is)<promise>\s*(.*?)\s*</promise>`)

// Coordinator owns one run of the iteration loop and wires the agent
// runner to the progress detector and quota gate. State is persisted
// after every mutation; a persistence failure aborts the run rather
// than continuing on state that would be lost.
type Coordinator struct {
	cfg       *config.Config
	runner    *agent.Runner
	detector  *progress.Detector
	gate      *quota.Gate
	stateDir  string
	logger    *logging.Logger
	callbacks Callbacks
}

// NewCoordinator wires a coordinator. detector and gate carry state
// already loaded from stateDir; the coordinator saves back to the same
// place.
func NewCoordinator(cfg *config.Config, runner *agent.Runner, detector *progress.Detector, gate *quota.Gate, stateDir string, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Coordinator{
		cfg:      cfg,
		runner:   runner,
		detector: detector,
		gate:     gate,
		stateDir: stateDir,
		logger:   logger.WithPhase("loop"),
	}
}

// SetCallbacks installs milestone hooks. Call before Run.
func (c *Coordinator) SetCallbacks(cb Callbacks) {
	c.callbacks = cb
}

// Run executes iterations until the work completes, a stuck threshold
// trips, the iteration cap is hit, or ctx is canceled. The returned
// error is non-nil only for failures that aborted the run (state
// persistence, agent start failures, cancellation); a stuck or
// max-iterations outcome is a normal return.
func (c *Coordinator) Run(ctx context.Context) (Outcome, error) {
	stories, err := LoadStories(c.cfg.Loop.StoriesFile)
	if err != nil {
		return OutcomeCanceled, err
	}
	if len(stories) == 0 {
		return OutcomeCanceled, errors.NewValidationError("story file has no task items").
			WithField("stories").WithValue(c.cfg.Loop.StoriesFile)
	}
	if AllDone(stories) {
		c.complete(0, "all stories already done")
		return OutcomeComplete, nil
	}

	for iteration := 1; iteration <= c.cfg.Loop.MaxIterations; iteration++ {
		iterLogger := c.logger.WithIteration(iteration)
		if c.callbacks.OnIterationStart != nil {
			c.callbacks.OnIterationStart(iteration)
		}

		if c.gate.CheckWindowRollover() {
			if err := c.saveQuota(); err != nil {
				return OutcomeCanceled, err
			}
		}
		if !c.gate.Check() {
			if c.callbacks.OnQuotaWait != nil {
				c.callbacks.OnQuotaWait(c.gate.SecondsUntilReset())
			}
			iterLogger.Info("quota gate closed", "status", c.gate.Status())
			if err := c.gate.WaitForReset(ctx); err != nil {
				return OutcomeCanceled, errors.Wrap(err, "waiting for quota reset")
			}
			if err := c.saveQuota(); err != nil {
				return OutcomeCanceled, err
			}
		}

		c.gate.RecordCall()
		if err := c.saveQuota(); err != nil {
			return OutcomeCanceled, err
		}

		prompt := c.buildPrompt(stories)
		result, err := c.runner.Run(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeCanceled, err
			}
			return OutcomeCanceled, errors.Wrap(err, "agent iteration failed to run")
		}
		iterLogger.Info("agent iteration finished",
			"exit_code", result.ExitCode,
			"duration", result.Duration.Round(time.Millisecond).String(),
			"output_len", len(result.Output))

		stories, err = LoadStories(c.cfg.Loop.StoriesFile)
		if err != nil {
			return OutcomeCanceled, err
		}
		progressed := c.detector.ObserveVector(CompletionVector(stories))

		if result.ExitCode != 0 {
			c.detector.RecordError(tail(result.Output, errorTailLimit))
		} else {
			c.detector.RecordSuccess()
		}
		if err := c.detector.State().Save(c.stateDir); err != nil {
			return OutcomeCanceled, err
		}

		if c.callbacks.OnIterationEnd != nil {
			c.callbacks.OnIterationEnd(iteration, result, progressed)
		}

		if c.promised(result.Output) {
			c.complete(iteration, "agent emitted completion promise")
			return OutcomeComplete, nil
		}
		if AllDone(stories) {
			c.complete(iteration, "all stories done")
			return OutcomeComplete, nil
		}

		if c.detector.Tripped() {
			status := c.detector.Status()
			iterLogger.Warn("stuck threshold tripped", "status", status)
			if c.callbacks.OnStuck != nil {
				c.callbacks.OnStuck(status)
			}
			return OutcomeStuck, nil
		}
	}

	c.logger.Warn("iteration cap reached", "max_iterations", c.cfg.Loop.MaxIterations)
	return OutcomeMaxIterations, nil
}

func (c *Coordinator) complete(iteration int, reason string) {
	c.logger.Info("run complete", "iteration", iteration, "reason", reason)
	if c.callbacks.OnComplete != nil {
		c.callbacks.OnComplete(iteration, reason)
	}
}

func (c *Coordinator) saveQuota() error {
	return c.gate.State().Save(c.stateDir)
}

// promised reports whether output contains a promise tag whose body
// matches the configured completion promise, case-insensitively.
func (c *Coordinator) promised(output string) bool {
	m := promisePattern.FindStringSubmatch(output)
	if m == nil {
		return false
	}
	return strings.EqualFold(m[1], c.cfg.Loop.CompletionPromise)
}

// buildPrompt renders the per-iteration instruction: work the first
// unchecked story, check it off, and announce completion with the
// promise tag once everything is done.
func (c *Coordinator) buildPrompt(stories []Story) string {
	var next string
	for _, s := range stories {
		if !s.Done {
			next = s.Title
			break
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Read %s and work on exactly one unchecked story: %q.\n\n", c.cfg.Loop.StoriesFile, next)
	b.WriteString("When the story is finished, update its checkbox from [ ] to [x] in the file.\n")
	b.WriteString("Do not start another story in this run.\n\n")
	fmt.Fprintf(&b, "If every story in %s is checked, reply with <promise>%s</promise> and stop.\n",
		c.cfg.Loop.StoriesFile, c.cfg.Loop.CompletionPromise)
	return b.String()
}

// tail returns at most n trailing bytes of s, aligned to a line start
// where possible.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	if i := strings.IndexByte(s, '\n'); i >= 0 && i+1 < len(s) {
		return s[i+1:]
	}
	return s
}
