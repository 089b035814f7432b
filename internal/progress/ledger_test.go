package progress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calla-labs/reloop/internal/errors"
)

func TestLoadAbsentIsFresh(t *testing.T) {
	dir := t.TempDir()

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.NoProgressCount != 0 || s.SameErrorCount != 0 || s.LastErrorHash != "" || s.LastPasses != nil {
		t.Errorf("fresh state not zeroed: %+v", s)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	in := &State{
		NoProgressCount: 2,
		SameErrorCount:  4,
		LastErrorHash:   Fingerprint("exit status 1"),
		LastPasses:      []bool{true, false, true},
	}
	if err := in.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.NoProgressCount != in.NoProgressCount {
		t.Errorf("NoProgressCount = %d, want %d", out.NoProgressCount, in.NoProgressCount)
	}
	if out.SameErrorCount != in.SameErrorCount {
		t.Errorf("SameErrorCount = %d, want %d", out.SameErrorCount, in.SameErrorCount)
	}
	if out.LastErrorHash != in.LastErrorHash {
		t.Errorf("LastErrorHash = %q, want %q", out.LastErrorHash, in.LastErrorHash)
	}
	if len(out.LastPasses) != 3 || out.LastPasses[0] != true || out.LastPasses[1] != false || out.LastPasses[2] != true {
		t.Errorf("LastPasses = %v, want [true false true]", out.LastPasses)
	}
}

func TestLoadCorruptCounterFails(t *testing.T) {
	dir := t.TempDir()

	content := "NO_PROGRESS_COUNT=banana\nSAME_ERROR_COUNT=0\n"
	if err := os.WriteFile(StatePath(dir), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Load accepted a malformed counter")
	}
	if !errors.Is(err, errors.ErrStateCorrupted) {
		t.Errorf("error = %v, want ErrStateCorrupted", err)
	}
}

func TestLoadCorruptPassesFails(t *testing.T) {
	dir := t.TempDir()

	content := "LAST_PASSES_STATE=true,maybe\n"
	if err := os.WriteFile(StatePath(dir), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Load accepted a malformed passes vector")
	}
	if !errors.Is(err, errors.ErrStateCorrupted) {
		t.Errorf("error = %v, want ErrStateCorrupted", err)
	}
}

func TestResetRemovesStateFile(t *testing.T) {
	dir := t.TempDir()

	s := &State{NoProgressCount: 1}
	if err := s.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := Reset(dir); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := os.Stat(StatePath(dir)); !os.IsNotExist(err) {
		t.Error("state file still present after reset")
	}

	// Resetting a dir with no state is not an error.
	if err := Reset(dir); err != nil {
		t.Errorf("second Reset: %v", err)
	}
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()

	s := &State{NoProgressCount: 1}
	if err := s.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestPassesFormatting(t *testing.T) {
	tests := []struct {
		passes []bool
		raw    string
	}{
		{nil, ""},
		{[]bool{true}, "true"},
		{[]bool{true, false, true}, "true,false,true"},
	}
	for _, tt := range tests {
		if got := formatPasses(tt.passes); got != tt.raw {
			t.Errorf("formatPasses(%v) = %q, want %q", tt.passes, got, tt.raw)
		}
		if tt.raw == "" {
			continue
		}
		back, err := parsePasses(tt.raw)
		if err != nil {
			t.Errorf("parsePasses(%q): %v", tt.raw, err)
			continue
		}
		if len(back) != len(tt.passes) {
			t.Errorf("parsePasses(%q) = %v, want %v", tt.raw, back, tt.passes)
		}
	}
}
