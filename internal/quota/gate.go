package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/calla-labs/reloop/internal/logging"
)

// Default gate parameters.
const (
	DefaultCallLimit     = 100
	DefaultWindow        = time.Hour
	resetPollInterval    = time.Second
	resetPollMaxInterval = 30 * time.Second
)

// Gate enforces a rolling call budget: at most limit calls per window.
// The gate mutates its State in memory; callers persist via State.Save
// at the cadence they need.
type Gate struct {
	state  *State
	limit  int
	window time.Duration
	logger *logging.Logger
	now    func() time.Time
}

// NewGate builds a gate over s. A nil logger is replaced with a no-op
// one; non-positive limit or window fall back to the defaults.
func NewGate(s *State, limit int, window time.Duration, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if limit <= 0 {
		limit = DefaultCallLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Gate{
		state:  s,
		limit:  limit,
		window: window,
		logger: logger.WithPhase("quota"),
		now:    time.Now,
	}
}

// State returns the underlying tracker state.
func (g *Gate) State() *State {
	return g.state
}

// Check reports whether another call is allowed right now. A count equal
// to the limit is already over budget.
func (g *Gate) Check() bool {
	return g.state.CallCount < g.limit
}

// RecordCall counts one call against the current window.
func (g *Gate) RecordCall() {
	g.state.CallCount++
	g.logger.Debug("call recorded", "count", g.state.CallCount, "limit", g.limit)
}

// CurrentCount returns the number of calls recorded in the current window.
func (g *Gate) CurrentCount() int {
	return g.state.CallCount
}

// Remaining returns how many calls are left in the current window,
// clamped at zero.
func (g *Gate) Remaining() int {
	if r := g.limit - g.state.CallCount; r > 0 {
		return r
	}
	return 0
}

// CheckWindowRollover advances the window if it has expired and reports
// whether a rollover happened. The new window start is aligned to a
// whole-window boundary from the old start, so a gap spanning several
// windows still lands the start at most one window behind now. The first
// call on a fresh state anchors the window at the boundary containing
// now without counting as a rollover, keeping persisted starts aligned.
func (g *Gate) CheckWindowRollover() bool {
	now := g.now()
	if g.state.WindowStart.IsZero() {
		g.state.WindowStart = now.Truncate(g.window)
		return false
	}

	elapsed := now.Sub(g.state.WindowStart)
	if elapsed < g.window {
		return false
	}

	windows := elapsed / g.window
	g.state.WindowStart = g.state.WindowStart.Add(windows * g.window)
	g.state.CallCount = 0
	g.logger.Info("quota window rolled over",
		"window_start", g.state.WindowStart.Format(time.RFC3339),
		"windows_skipped", int64(windows))
	return true
}

// SecondsUntilReset returns how long until the current window expires,
// in whole seconds, clamped to [0, window]. Zero means the window has
// already expired (or none has started) and a rollover check will reset
// the count.
func (g *Gate) SecondsUntilReset() int {
	if g.state.WindowStart.IsZero() {
		return 0
	}
	until := g.state.WindowStart.Add(g.window).Sub(g.now())
	if until <= 0 {
		return 0
	}
	secs := int((until + time.Second - 1) / time.Second)
	max := int(g.window / time.Second)
	if secs > max {
		return max
	}
	return secs
}

// WaitForReset blocks until the window rolls over or ctx is canceled.
// It polls rather than sleeping the full remainder so a canceled context
// is honored promptly.
func (g *Gate) WaitForReset(ctx context.Context) error {
	if g.CheckWindowRollover() {
		return nil
	}

	g.logger.Info("quota exhausted, waiting for window reset",
		"seconds_until_reset", g.SecondsUntilReset())

	interval := resetPollInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if g.CheckWindowRollover() {
				return nil
			}
			if interval < resetPollMaxInterval {
				interval *= 2
				if interval > resetPollMaxInterval {
					interval = resetPollMaxInterval
				}
			}
			timer.Reset(interval)
		}
	}
}

// Status returns a one-line human-readable summary of the gate, e.g.
// "85/100 calls used (15 remaining)".
func (g *Gate) Status() string {
	return fmt.Sprintf("%d/%d calls used (%d remaining)",
		g.state.CallCount, g.limit, g.Remaining())
}
