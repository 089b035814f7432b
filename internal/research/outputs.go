package research

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/calla-labs/reloop/internal/logging"
	"github.com/calla-labs/reloop/internal/util"
)

// OutputFilePrefix is the on-disk marker for research artifacts.
const OutputFilePrefix = "RESEARCH-"

// SanitizeLabel turns an arbitrary topic into a filesystem-safe label.
// The result is lowercase with hyphen-separated runs and is stable under
// repeated application.
func SanitizeLabel(topic string) string {
	return util.Slugify(topic)
}

// OutputPath returns the artifact path for a topic inside dir, e.g.
// "research/RESEARCH-error-handling-patterns.md".
func OutputPath(topic, dir string) string {
	return filepath.Join(dir, OutputFilePrefix+SanitizeLabel(topic)+".md")
}

// ListOutputs returns the research artifacts present in dir, sorted by
// name. A missing or unreadable directory yields an empty list rather
// than an error; callers only surface the listing in status output.
func ListOutputs(dir string) []string {
	matches, err := filepath.Glob(filepath.Join(dir, OutputFilePrefix+"*.md"))
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

// WatchOutputs watches dir for research artifacts being written and
// invokes onArtifact with each artifact path on create or write events.
// It blocks until ctx is done. The directory must exist before watching
// starts.
func WatchOutputs(ctx context.Context, dir string, logger *logging.Logger, onArtifact func(path string)) error {
	if logger == nil {
		logger = logging.NopLogger()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	logger.Debug("watching research outputs", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, OutputFilePrefix) && strings.HasSuffix(name, ".md") {
				onArtifact(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("research output watcher error", "error", err)
		}
	}
}
