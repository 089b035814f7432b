// Package state provides durable KEY=VALUE state files for the loop
// harness: cross-process file locking, atomic whole-file writes, and
// dotenv-formatted load/store.
//
// State files are read-modify-written as a whole. Absence of a file is a
// normal initialize-fresh case and is reported distinctly; any other read
// or parse failure is fatal to the calling operation so that a stuck or
// over-quota condition is never masked by silently assumed zero state.
//
// Concurrent access from multiple independent processes to the same state
// file is unsupported; the lock only guards individual read-modify-write
// cycles, and last-writer-wins on the underlying file.
package state
