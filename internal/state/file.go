package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/calla-labs/reloop/internal/errors"
)

// Read loads a KEY=VALUE state file. The second return value reports
// whether the file existed: (nil, false, nil) means absent, which callers
// treat as initialize-fresh. Any other failure (unreadable file, parse
// error) is returned as a *errors.StateError and must not be treated as
// empty state.
func Read(path string) (map[string]string, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.NewStateError("stat state file", err).WithPath(path)
	}

	vals, err := godotenv.Read(path)
	if err != nil {
		return nil, false, errors.NewStateError("parse state file", err).WithPath(path)
	}
	return vals, true, nil
}

// Write persists a KEY=VALUE state file as a whole. The write is atomic:
// data is marshaled to a temporary file first, then renamed into place.
// A directory-level file lock is held for the duration.
func Write(path string, vals map[string]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewStateError("create state directory", err).WithPath(path)
	}

	fl := NewFileLock(dir)
	if err := fl.Lock(); err != nil {
		return errors.NewStateError("acquire lock", err).WithPath(path)
	}
	defer func() { _ = fl.Unlock() }()

	content, err := godotenv.Marshal(vals)
	if err != nil {
		return errors.NewStateError("marshal state", err).WithPath(path)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content+"\n"), 0644); err != nil {
		return errors.NewStateError("write temp file", err).WithPath(path)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return errors.NewStateError("rename temp file", err).WithPath(path)
	}

	return nil
}

// Remove deletes a state file. Missing files are not an error; anything
// else is surfaced as a *errors.StateError.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewStateError("remove state file", err).WithPath(path)
	}
	return nil
}

// Int parses an integer from a state map, returning fallback when the key
// is absent. A present-but-malformed value is a corruption error; the
// whole value must be a valid integer, trailing garbage included.
func Int(vals map[string]string, key string, fallback int) (int, error) {
	raw, ok := vals[key]
	if !ok || raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewStateError(
			fmt.Sprintf("invalid integer for %s: %q", key, raw),
			errors.ErrStateCorrupted,
		)
	}
	return n, nil
}

// Int64 parses a 64-bit integer from a state map, returning fallback when
// the key is absent.
func Int64(vals map[string]string, key string, fallback int64) (int64, error) {
	raw, ok := vals[key]
	if !ok || raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.NewStateError(
			fmt.Sprintf("invalid integer for %s: %q", key, raw),
			errors.ErrStateCorrupted,
		)
	}
	return n, nil
}
