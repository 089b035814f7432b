package loop

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/calla-labs/reloop/internal/agent"
	"github.com/calla-labs/reloop/internal/config"
	"github.com/calla-labs/reloop/internal/progress"
	"github.com/calla-labs/reloop/internal/quota"
)

// testHarness bundles a coordinator with the files and state it runs
// against. script is a shell fragment run as the fake agent each
// iteration; the iteration prompt arrives as an ignored argument.
type testHarness struct {
	coord    *Coordinator
	detector *progress.Detector
	gate     *quota.Gate
	stories  string
	stateDir string
}

func newHarness(t *testing.T, storyContent, script string, thresholds progress.Thresholds) *testHarness {
	return newHarnessFunc(t, storyContent, func(string) string { return script }, thresholds)
}

// newHarnessFunc lets the agent script reference the story file path,
// which only exists once the harness directory is created.
func newHarnessFunc(t *testing.T, storyContent string, script func(storiesPath string) string, thresholds progress.Thresholds) *testHarness {
	t.Helper()

	dir := t.TempDir()
	stories := filepath.Join(dir, "prd.md")
	if err := os.WriteFile(stories, []byte(storyContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Loop.StoriesFile = stories
	cfg.Loop.MaxIterations = 5

	runner, err := agent.NewRunner("sh", []string{"-c", script(stories)}, "", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	detector := progress.NewDetector(&progress.State{}, thresholds, nil)
	gate := quota.NewGate(&quota.State{}, 100, time.Hour, nil)
	stateDir := filepath.Join(dir, ".reloop")

	return &testHarness{
		coord:    NewCoordinator(cfg, runner, detector, gate, stateDir, nil),
		detector: detector,
		gate:     gate,
		stories:  stories,
		stateDir: stateDir,
	}
}

func TestRunCompletesWhenStoriesFinish(t *testing.T) {
	// The fake agent checks the story off.
	h := newHarnessFunc(t, "- [ ] only story\n", func(stories string) string {
		return "printf -- '- [x] only story\\n' > " + stories
	}, progress.DefaultThresholds())

	outcome, err := h.coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeComplete {
		t.Errorf("outcome = %v, want complete", outcome)
	}
	if h.gate.CurrentCount() != 1 {
		t.Errorf("quota count = %d, want 1", h.gate.CurrentCount())
	}
}

func TestRunCompletesOnPromise(t *testing.T) {
	h := newHarness(t, "- [ ] story\n",
		"echo '<promise>DONE</promise>'", progress.DefaultThresholds())

	var reason string
	h.coord.SetCallbacks(Callbacks{
		OnComplete: func(_ int, r string) { reason = r },
	})

	outcome, err := h.coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeComplete {
		t.Errorf("outcome = %v, want complete", outcome)
	}
	if reason == "" {
		t.Error("OnComplete callback not invoked")
	}
}

func TestRunStopsWhenStuck(t *testing.T) {
	// The fake agent never touches the story file, so every iteration
	// after the first observes an unchanged completion vector.
	h := newHarness(t, "- [ ] story\n", "true",
		progress.Thresholds{NoProgress: 2, SameError: 5})

	var stuckStatus string
	iterations := 0
	h.coord.SetCallbacks(Callbacks{
		OnIterationStart: func(int) { iterations++ },
		OnStuck:          func(s string) { stuckStatus = s },
	})

	outcome, err := h.coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeStuck {
		t.Errorf("outcome = %v, want stuck", outcome)
	}
	if stuckStatus == "" {
		t.Error("OnStuck callback not invoked")
	}
	// Iteration 1 counts as progress (first observation); 2 and 3 do
	// not, tripping the threshold of 2.
	if iterations != 3 {
		t.Errorf("iterations = %d, want 3", iterations)
	}
}

func TestRunStopsOnRepeatedErrors(t *testing.T) {
	h := newHarness(t, "- [ ] story\n", "echo 'compile error'; exit 1",
		progress.Thresholds{NoProgress: 10, SameError: 2})

	outcome, err := h.coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeStuck {
		t.Errorf("outcome = %v, want stuck", outcome)
	}
	if h.detector.State().SameErrorCount < 2 {
		t.Errorf("SameErrorCount = %d, want >= 2", h.detector.State().SameErrorCount)
	}
}

func TestRunHitsIterationCap(t *testing.T) {
	h := newHarness(t, "- [ ] story\n", "true",
		progress.Thresholds{NoProgress: 100, SameError: 100})

	outcome, err := h.coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeMaxIterations {
		t.Errorf("outcome = %v, want max-iterations", outcome)
	}
	if h.gate.CurrentCount() != 5 {
		t.Errorf("quota count = %d, want 5", h.gate.CurrentCount())
	}
}

func TestRunPersistsStateAcrossInstances(t *testing.T) {
	h := newHarness(t, "- [ ] story\n", "true",
		progress.Thresholds{NoProgress: 2, SameError: 5})

	if _, err := h.coord.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ps, err := progress.Load(h.stateDir)
	if err != nil {
		t.Fatalf("progress.Load: %v", err)
	}
	if ps.NoProgressCount < 2 {
		t.Errorf("persisted NoProgressCount = %d, want >= 2", ps.NoProgressCount)
	}

	qs, err := quota.Load(h.stateDir)
	if err != nil {
		t.Fatalf("quota.Load: %v", err)
	}
	if qs.CallCount != 3 {
		t.Errorf("persisted CallCount = %d, want 3", qs.CallCount)
	}
}

func TestRunRejectsEmptyStoryFile(t *testing.T) {
	h := newHarness(t, "just prose, no checkboxes\n", "true", progress.DefaultThresholds())

	if _, err := h.coord.Run(context.Background()); err == nil {
		t.Fatal("story file without task items accepted")
	}
}

func TestRunWithAllStoriesAlreadyDone(t *testing.T) {
	h := newHarness(t, "- [x] story\n", "true", progress.DefaultThresholds())

	outcome, err := h.coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeComplete {
		t.Errorf("outcome = %v, want complete", outcome)
	}
	if h.gate.CurrentCount() != 0 {
		t.Errorf("quota count = %d, want 0 (no agent call)", h.gate.CurrentCount())
	}
}

func TestPromiseDetection(t *testing.T) {
	h := newHarness(t, "- [ ] story\n", "true", progress.DefaultThresholds())

	tests := []struct {
		output string
		want   bool
	}{
		{"<promise>DONE</promise>", true},
		{"work log\n<promise> done </promise>\ntrailer", true},
		{"<PROMISE>DONE</PROMISE>", true},
		{"<promise>ALMOST</promise>", false},
		{"promise: DONE", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := h.coord.promised(tt.output); got != tt.want {
			t.Errorf("promised(%q) = %v, want %v", tt.output, got, tt.want)
		}
	}
}
