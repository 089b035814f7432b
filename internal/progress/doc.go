// Package progress tracks forward progress of the outer agent loop.
//
// It persists a small ledger (two consecutive-iteration counters, the
// fingerprint of the last error, and the last observed completion vector)
// and derives from it the decision of whether the loop is stuck and should
// halt before consuming further agent calls.
//
// The ledger is an explicit state object loaded from and saved to a single
// KEY=VALUE file; nothing in this package keeps process-global counters.
// Persistence is explicit: Detector mutations happen in memory and the
// caller decides when to save.
package progress
