package research

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Error Handling Patterns", "error-handling-patterns"},
		{"gRPC vs REST?", "grpc-vs-rest"},
		{"  spaced  out  ", "spaced-out"},
		{"already-a-slug", "already-a-slug"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := SanitizeLabel(tt.in); got != tt.want {
			t.Errorf("SanitizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeLabelIdempotent(t *testing.T) {
	inputs := []string{"Error Handling Patterns", "a b c", "x--y__z"}
	for _, in := range inputs {
		once := SanitizeLabel(in)
		if twice := SanitizeLabel(once); twice != once {
			t.Errorf("SanitizeLabel not stable: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestOutputPath(t *testing.T) {
	got := OutputPath("Error Handling Patterns", "research")
	want := filepath.Join("research", "RESEARCH-error-handling-patterns.md")
	if got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}
}

func TestListOutputs(t *testing.T) {
	dir := t.TempDir()

	// Missing directory is an empty list, not an error.
	if got := ListOutputs(filepath.Join(dir, "nope")); len(got) != 0 {
		t.Errorf("ListOutputs(missing) = %v", got)
	}

	for _, name := range []string{"RESEARCH-beta.md", "RESEARCH-alpha.md", "notes.md", "RESEARCH-raw.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got := ListOutputs(dir)
	if len(got) != 2 {
		t.Fatalf("ListOutputs = %v, want 2 artifacts", got)
	}
	if filepath.Base(got[0]) != "RESEARCH-alpha.md" || filepath.Base(got[1]) != "RESEARCH-beta.md" {
		t.Errorf("ListOutputs not sorted: %v", got)
	}
}

func TestBuildPromptFallback(t *testing.T) {
	got := BuildPrompt("caching strategies", "research/RESEARCH-caching-strategies.md", "")
	for _, want := range []string{"caching strategies", "RESEARCH-caching-strategies.md", "## Summary", "## Key Findings", "## Confidence", "## Sources"} {
		if !strings.Contains(got, want) {
			t.Errorf("built-in prompt missing %q", want)
		}
	}
}

func TestBuildPromptExternalTemplate(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "prompt.tmpl")
	if err := os.WriteFile(tmpl, []byte("Investigate {{topic}}, write to {{output}}."), 0o644); err != nil {
		t.Fatal(err)
	}

	got := BuildPrompt("indexing", "out.md", tmpl)
	if got != "Investigate indexing, write to out.md." {
		t.Errorf("BuildPrompt = %q", got)
	}

	// A missing template file falls back instead of failing.
	got = BuildPrompt("indexing", "out.md", filepath.Join(dir, "absent.tmpl"))
	if !strings.Contains(got, "## Summary") {
		t.Errorf("fallback prompt missing built-in sections: %q", got)
	}
}
