// Package quota enforces a rolling per-window budget on agent calls.
//
// The tracker persists the call count and window start as a small
// KEY=VALUE file; the gate layers the limit check, window rollover, and
// wait-for-reset behavior on top of that state.
package quota
