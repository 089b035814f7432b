package progress

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/calla-labs/reloop/internal/errors"
	"github.com/calla-labs/reloop/internal/state"
)

// StateFileName is the ledger file inside a run's state directory.
const StateFileName = "progress.env"

// Persisted ledger keys.
const (
	keyNoProgressCount = "NO_PROGRESS_COUNT"
	keySameErrorCount  = "SAME_ERROR_COUNT"
	keyLastErrorHash   = "LAST_ERROR_HASH"
	keyLastPassesState = "LAST_PASSES_STATE"
)

// State is the persisted progress ledger for one run.
//
// Both counters reset to 0 on an explicit progress / different-error
// observation and otherwise increase by exactly 1 per iteration. They grow
// unbounded above their thresholds until reset.
type State struct {
	// NoProgressCount is the number of consecutive iterations with no
	// observed change in the completion vector.
	NoProgressCount int
	// SameErrorCount is the number of consecutive iterations whose error
	// fingerprint matched the previous one.
	SameErrorCount int
	// LastErrorHash is the fingerprint of the last error text, or empty
	// if no error has been recorded.
	LastErrorHash string
	// LastPasses is the last observed completion vector, or nil if none
	// has been observed.
	LastPasses []bool
}

// StatePath returns the ledger file path for a state directory.
func StatePath(dir string) string {
	return filepath.Join(dir, StateFileName)
}

// Load reads the ledger from dir. An absent file yields a zeroed fresh
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
	if s.NoProgressCount, err = state.Int(vals, keyNoProgressCount, 0); err != nil {
		return nil, err
	}
	if s.SameErrorCount, err = state.Int(vals, keySameErrorCount, 0); err != nil {
		return nil, err
	}
	s.LastErrorHash = vals[keyLastErrorHash]

	if raw := vals[keyLastPassesState]; raw != "" {
		passes, err := parsePasses(raw)
		if err != nil {
			return nil, err
		}
		s.LastPasses = passes
	}

	return s, nil
}

// Save writes the ledger to dir as a whole, atomically.
func (s *State) Save(dir string) error {
	vals := map[string]string{
		keyNoProgressCount: strconv.Itoa(s.NoProgressCount),
		keySameErrorCount:  strconv.Itoa(s.SameErrorCount),
		keyLastErrorHash:   s.LastErrorHash,
		keyLastPassesState: formatPasses(s.LastPasses),
	}
	return state.Write(StatePath(dir), vals)
}

// Reset deletes the persisted ledger for dir. Used at the start of a new
// feature/run.
func Reset(dir string) error {
	return state.Remove(StatePath(dir))
}

// Fingerprint computes the deterministic fixed-length digest of error
// text used to compare errors across iterations without storing the full
// text. The empty string is a valid, fingerprint-able value.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}

// formatPasses renders a completion vector as comma-joined booleans.
func formatPasses(passes []bool) string {
	if len(passes) == 0 {
		return ""
	}
	parts := make([]string, len(passes))
	for i, p := range passes {
		if p {
			parts[i] = "true"
		} else {
			parts[i] = "false"
		}
	}
	return strings.Join(parts, ",")
}

// parsePasses parses a comma-joined boolean list.
func parsePasses(raw string) ([]bool, error) {
	parts := strings.Split(raw, ",")
	passes := make([]bool, len(parts))
	for i, p := range parts {
		switch strings.TrimSpace(p) {
		case "true":
			passes[i] = true
		case "false":
			passes[i] = false
		default:
			return nil, errors.NewStateError(
				"invalid completion vector entry: "+p,
				errors.ErrStateCorrupted,
			)
		}
	}
	return passes, nil
}
