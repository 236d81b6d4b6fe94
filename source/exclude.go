package source

import (
	"log/slog"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludePatterns are always applied in addition to caller patterns.
var DefaultExcludePatterns = []string{
	"**/workflow_system_analysis_report.md",
	"**/validation_*.txt",
	"**/*.backup*",
	"**/temp/**",
	"**/.git/**",
	"**/develop/**",
}

// Excluder decides whether a file is out of scope. Matching is
// case-sensitive and the first matching pattern wins.
type Excluder struct {
	patterns []string
	logger   *slog.Logger
}

// NewExcluder merges DefaultExcludePatterns with extra. Patterns that are not
// valid globs are logged and dropped.
func NewExcluder(extra []string, logger *slog.Logger) *Excluder {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Excluder{logger: logger}
	seen := make(map[string]bool)
	for _, p := range append(append([]string{}, DefaultExcludePatterns...), extra...) {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
		if p == "" || seen[p] {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			logger.Warn("Ignoring invalid exclude pattern", "pattern", p)
			continue
		}
		seen[p] = true
		e.patterns = append(e.patterns, p)
	}
	return e
}

// Patterns returns the effective pattern list in match order.
func (e *Excluder) Patterns() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.patterns))
	copy(out, e.patterns)
	return out
}

// Excluded reports whether the slash-separated relative path rel matches any
// pattern. A nil Excluder excludes nothing.
func (e *Excluder) Excluded(rel string) bool {
	if e == nil {
		return false
	}
	rel = strings.TrimPrefix(strings.ReplaceAll(rel, "\\", "/"), "./")
	name := path.Base(rel)

	for _, pattern := range e.patterns {
		if matchPattern(pattern, rel, name) {
			e.logger.Debug("Excluded file", "path", rel, "pattern", pattern)
			return true
		}
	}
	return false
}

// File is a convenience wrapper over Excluded for a File.
func (e *Excluder) File(f File) bool {
	return e.Excluded(f.Rel)
}

func matchPattern(pattern, rel, name string) bool {
	if simple, ok := strings.CutPrefix(pattern, "**/"); ok {
		if strings.Contains(simple, "/") {
			// "**/dir/**" and "**/dir/" exclude anything below a path segment named dir.
			dir, _, _ := strings.Cut(simple, "/")
			for _, part := range strings.Split(rel, "/") {
				if part == dir {
					return true
				}
			}
			return false
		}
		if ok, _ := doublestar.Match(simple, name); ok {
			return true
		}
		return strings.HasSuffix(rel, simple)
	}

	if ok, _ := doublestar.Match(pattern, rel); ok {
		return true
	}
	ok, _ := doublestar.Match(pattern, name)
	return ok
}

// Filter returns the files that are not excluded.
func (e *Excluder) Filter(files []File) []File {
	out := make([]File, 0, len(files))
	for _, f := range files {
		if !e.File(f) {
			out = append(out, f)
		}
	}
	return out
}
