package util

import "testing"

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"exactly max", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
		{"max too small", "hello", 3, "..."},
		{"empty string", "", 10, ""},
		{"unicode", "héllo wörld", 8, "héllo..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "auth patterns", "auth-patterns"},
		{"punctuation", "Auth Patterns!", "auth-patterns"},
		{"mixed runs", "a  --  b", "a-b"},
		{"leading trailing", "  !rate limiting?  ", "rate-limiting"},
		{"uppercase", "OAuth2 Flows", "oauth2-flows"},
		{"empty", "", ""},
		{"only symbols", "!!!", ""},
		{"already clean", "auth-patterns", "auth-patterns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSlugifyIdempotent(t *testing.T) {
	inputs := []string{
		"Auth Patterns!",
		"a  b  c",
		"",
		"UPPER_case mixed 42",
		"--edge--case--",
	}

	for _, in := range inputs {
		once := Slugify(in)
		twice := Slugify(once)
		if once != twice {
			t.Errorf("Slugify not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
