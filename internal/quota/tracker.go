package quota

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/calla-labs/reloop/internal/state"
)

// StateFileName is the quota tracker file inside a run's state directory.
const StateFileName = "quota.env"

// Persisted tracker keys.
const (
	keyCallCount = "CALL_COUNT"
	keyHourStart = "HOUR_START"
)

// State is the persisted quota tracker: how many calls have been made in
// the current window and when that window began.
type State struct {
	// CallCount is the number of calls recorded in the current window.
	CallCount int
	// WindowStart is when the current window began. The zero time means
	// no window has been started yet.
	WindowStart time.Time
}

// StatePath returns the tracker file path for a state directory.
func StatePath(dir string) string {
	return filepath.Join(dir, StateFileName)
}

// Load reads the tracker from dir. An absent file yields a zeroed fresh
// State; any other failure is returned as a state error and must not be
// treated as zero state.
func Load(dir string) (*State, error) {
	vals, found, err := state.Read(StatePath(dir))
	if err != nil {
		return nil, err
	}
	if !found {
		return &State{}, nil
	}

	s := &State{}
	if s.CallCount, err = state.Int(vals, keyCallCount, 0); err != nil {
		return nil, err
	}
	start, err := state.Int64(vals, keyHourStart, 0)
	if err != nil {
		return nil, err
	}
	if start != 0 {
		s.WindowStart = time.Unix(start, 0)
	}
	return s, nil
}

// Save writes the tracker to dir as a whole, atomically. The window start
// is stored as a unix timestamp so the file stays human-editable.
func (s *State) Save(dir string) error {
	var start int64
	if !s.WindowStart.IsZero() {
		start = s.WindowStart.Unix()
	}
	vals := map[string]string{
		keyCallCount: strconv.Itoa(s.CallCount),
		keyHourStart: strconv.FormatInt(start, 10),
	}
	return state.Write(StatePath(dir), vals)
}

// Reset deletes the persisted tracker for dir.
func Reset(dir string) error {
	return state.Remove(StatePath(dir))
}
