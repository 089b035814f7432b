package loop

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/calla-labs/reloop/internal/errors"
)

// Story is one checkbox item from the story file.
type Story struct {
	Title string
	Done  bool
}

// checkboxLine matches a markdown task item: "- [ ] title" or
// "- [x] title", with "*" and "+" list markers accepted too.
var checkboxLine = regexp.MustCompile(`^\s*[-*+]\s+\[([ xX])\]\s+(.*)$`)

// ParseStories extracts checkbox items from markdown, in file order.
// Lines that are not task items are ignored.
func ParseStories(r io.Reader) ([]Story, error) {
	var stories []Story
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m := checkboxLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		stories = append(stories, Story{
			Title: strings.TrimSpace(m[2]),
			Done:  m[1] == "x" || m[1] == "X",
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return stories, nil
}

// LoadStories reads the story file at path. A missing file is an error
// here, unlike state files: the story file is the work definition and
// the loop cannot run without it.
func LoadStories(path string) ([]Story, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("story file", path)
		}
		return nil, errors.Wrap(err, "reading story file")
	}
	defer f.Close()
	return ParseStories(f)
}

// CompletionVector maps stories to their done flags, preserving order.
func CompletionVector(stories []Story) []bool {
	vec := make([]bool, len(stories))
	for i, s := range stories {
		vec[i] = s.Done
	}
	return vec
}

// AllDone reports whether every story is checked off. An empty story
// list is not done; there is nothing to have finished.
func AllDone(stories []Story) bool {
	if len(stories) == 0 {
		return false
	}
	for _, s := range stories {
		if !s.Done {
			return false
		}
	}
	return true
}
