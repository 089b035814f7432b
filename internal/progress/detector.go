package progress

import (
	"fmt"

	"github.com/calla-labs/reloop/internal/logging"
)

// Thresholds configures when the detector considers the loop stuck.
type Thresholds struct {
	// NoProgress is the consecutive no-op iteration count that trips the
	// detector (default: 3).
	NoProgress int
	// SameError is the consecutive identical-error count that trips the
	// detector (default: 5).
	SameError int
}

// DefaultThresholds returns the default detector thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NoProgress: 3,
		SameError:  5,
	}
}

// Detector decides, from locally observable signals only, whether the
// outer loop is making no forward progress and should halt.
//
// The Detector mutates its State in memory only; the caller persists the
// ledger explicitly via State.Save. The control thread is single-threaded
// with respect to the detector, so no internal locking is used.
type Detector struct {
	state      *State
	thresholds Thresholds
	logger     *logging.Logger
}

// NewDetector creates a detector over an existing ledger state.
func NewDetector(s *State, thresholds Thresholds, logger *logging.Logger) *Detector {
	if s == nil {
		s = &State{}
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Detector{
		state:      s,
		thresholds: thresholds,
		logger:     logger.WithPhase("detector"),
	}
}

// State returns the underlying ledger state, for persistence by the caller.
func (d *Detector) State() *State {
	return d.state
}

// RecordNoProgress increments the consecutive no-progress counter.
func (d *Detector) RecordNoProgress() {
	d.state.NoProgressCount++
	d.logger.Debug("no progress recorded", "count", d.state.NoProgressCount)
}

// RecordProgress resets the consecutive no-progress counter.
func (d *Detector) RecordProgress() {
	d.state.NoProgressCount = 0
	d.logger.Debug("progress recorded")
}

// RecordError fingerprints the given error text and updates the
// same-error counter: an identical fingerprint to the previous error
// increments the run, a different one starts a new run of length 1.
// The empty string is a valid error text with its own fingerprint.
func (d *Detector) RecordError(text string) {
	fp := Fingerprint(text)
	if fp == d.state.LastErrorHash {
		d.state.SameErrorCount++
	} else {
		d.state.SameErrorCount = 1
		d.state.LastErrorHash = fp
	}
	d.logger.Debug("error recorded",
		"fingerprint", fp,
		"same_error_count", d.state.SameErrorCount,
	)
}

// RecordSuccess clears the same-error run after an iteration that
// produced no error at all.
func (d *Detector) RecordSuccess() {
	d.state.SameErrorCount = 0
	d.state.LastErrorHash = ""
}

// DetectProgress reports whether two completion vectors of equal
// cardinality differ at any position. Two equal vectors are "no
// progress", and that includes two empty vectors. Cardinality mismatch
// is not validated; callers must supply vectors of matching length.
func DetectProgress(before, after []bool) bool {
	for i := range before {
		if before[i] != after[i] {
			return true
		}
	}
	return false
}

// ObserveVector compares the given completion vector against the last
// one stored in the ledger, updates the no-progress counter accordingly,
// stores the new vector, and reports whether progress was observed.
// The first observation of a run counts as progress only if the ledger
// held no prior vector of the same length to compare against.
func (d *Detector) ObserveVector(after []bool) bool {
	before := d.state.LastPasses
	// Copy via make so an observed empty vector stays non-nil and is
	// distinguishable from "never observed".
	stored := make([]bool, len(after))
	copy(stored, after)
	d.state.LastPasses = stored

	if before == nil || len(before) != len(after) {
		d.RecordProgress()
		return true
	}

	if DetectProgress(before, after) {
		d.RecordProgress()
		return true
	}
	d.RecordNoProgress()
	return false
}

// NoProgressTripped reports whether the no-progress counter has reached
// its threshold.
func (d *Detector) NoProgressTripped() bool {
	return d.state.NoProgressCount >= d.thresholds.NoProgress
}

// SameErrorTripped reports whether the same-error counter has reached
// its threshold.
func (d *Detector) SameErrorTripped() bool {
	return d.state.SameErrorCount >= d.thresholds.SameError
}

// Tripped reports whether either threshold has been reached. This is the
// primary control signal the loop driver consults.
func (d *Detector) Tripped() bool {
	return d.NoProgressTripped() || d.SameErrorTripped()
}

// Status produces a human-readable summary of both counters and their
// threshold state. It is diagnostic only and must never be used as the
// control signal; control flow uses Tripped and the per-counter checks.
func (d *Detector) Status() string {
	marker := "OK"
	if d.Tripped() {
		marker = "TRIPPED"
	}
	return fmt.Sprintf("no_progress: %d/%d, same_error: %d/%d [%s]",
		d.state.NoProgressCount, d.thresholds.NoProgress,
		d.state.SameErrorCount, d.thresholds.SameError,
		marker,
	)
}

// Reset zeroes both counters and clears the fingerprint and last
// completion vector. Used at the start of a new feature/run.
func (d *Detector) Reset() {
	d.state.NoProgressCount = 0
	d.state.SameErrorCount = 0
	d.state.LastErrorHash = ""
	d.state.LastPasses = nil
	d.logger.Info("detector reset")
}
