// Package quality scores a workflow directory along named dimensions. Each
// dimension is produced by a Plugin; a Manager combines them into a weighted
// overall score and a grade.
package quality

import (
	"fmt"
	"log/slog"
	"math"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/wfvalidate/source"
)

// DefaultMaxScore is the upper bound of every standard dimension.
const DefaultMaxScore = 10.0

// invalidDirCheck is the single failed check reported for unusable roots.
const invalidDirCheck = "workflow directory is invalid"

// Plugin scores one quality dimension of a workflow directory.
//
// Implementations must not modify the directory and must return a score in
// [0, MaxScore] for any input, including empty and missing directories.
type Plugin interface {
	Name() string
	Version() string
	Description() string
	MaxScore() float64
	// WeightHint is the weight used when the manager has no configured
	// weight for this dimension.
	WeightHint() float64
	// Assess is the score-only view of AssessDetails and must return the
	// same score. The manager reads AssessDetails only.
	Assess(dir string) (float64, error)
	AssessDetails(dir string) (*Detail, error)
}

// Detail is the structured outcome of one plugin run.
type Detail struct {
	Score           float64  `json:"score"`
	PassedChecks    []string `json:"passed_checks"`
	FailedChecks    []string `json:"failed_checks"`
	Recommendations []string `json:"recommendations"`
}

// Info describes a registered plugin.
type Info struct {
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	Description string  `json:"description"`
	MaxScore    float64 `json:"max_score"`
	Weight      float64 `json:"weight"`
}

// base carries the metadata and scan plumbing shared by the standard plugins.
type base struct {
	name        string
	description string
	weight      float64
	excluder    *source.Excluder
	logger      *slog.Logger
}

func (b *base) Name() string        { return b.name }
func (b *base) Version() string     { return "1.0.0" }
func (b *base) Description() string { return b.description }
func (b *base) MaxScore() float64   { return DefaultMaxScore }
func (b *base) WeightHint() float64 { return b.weight }

// evaluate opens dir and runs the plugin's checks against it. An invalid
// directory yields a zero score with a single failed check.
func (b *base) evaluate(dir string, run func(*workspace, *checklist)) *Detail {
	c := &checklist{}
	ws, err := openWorkspace(dir, b.excluder, b.logger)
	if err != nil {
		b.logger.Error("Invalid workflow directory", "plugin", b.name, "dir", dir, "error", err)
		c.detail.FailedChecks = append(c.detail.FailedChecks, invalidDirCheck)
		return c.finish(DefaultMaxScore)
	}

	run(ws, c)
	d := c.finish(DefaultMaxScore)
	b.logger.Debug("Dimension assessed", "plugin", b.name, "score", d.Score,
		"passed", len(d.PassedChecks), "failed", len(d.FailedChecks))
	return d
}

// checklist accumulates check outcomes into a Detail.
type checklist struct {
	detail Detail
}

func (c *checklist) pass(check string, points float64) {
	c.detail.Score += points
	c.detail.PassedChecks = append(c.detail.PassedChecks, check)
}

func (c *checklist) fail(check, recommendation string) {
	c.detail.FailedChecks = append(c.detail.FailedChecks, check)
	if recommendation != "" {
		c.detail.Recommendations = append(c.detail.Recommendations, recommendation)
	}
}

// check records a boolean check worth points.
func (c *checklist) check(ok bool, points float64, passed, failed, recommendation string) {
	if ok {
		c.pass(passed, points)
		return
	}
	c.fail(failed, recommendation)
}

// partial records a graded check. Anything short of full credit is reported
// as failed with the credit earned.
func (c *checklist) partial(got, limit float64, passed, failed, recommendation string) {
	got = clamp(got, 0, limit)
	if got >= limit {
		c.pass(passed, limit)
		return
	}
	c.detail.Score += got
	c.fail(fmt.Sprintf("%s (%.2f/%.2f)", failed, got, limit), recommendation)
}

func (c *checklist) finish(maxScore float64) *Detail {
	d := c.detail
	d.Score = clamp(d.Score, 0, maxScore)
	if d.PassedChecks == nil {
		d.PassedChecks = []string{}
	}
	if d.FailedChecks == nil {
		d.FailedChecks = []string{}
	}
	if len(d.FailedChecks) == 0 || d.Recommendations == nil {
		d.Recommendations = []string{}
	}
	return &d
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}

// workspace is the in-scope view of a workflow directory for one plugin run.
// File contents are read lazily and cached; unreadable files are treated as
// absent.
type workspace struct {
	tree     *source.Tree
	files    []source.File
	excluder *source.Excluder
	cache    map[string]*string
	logger   *slog.Logger
}

func openWorkspace(dir string, excluder *source.Excluder, logger *slog.Logger) (*workspace, error) {
	tree, err := source.Open(dir)
	if err != nil {
		return nil, err
	}
	return &workspace{
		tree:     tree,
		files:    excluder.Filter(tree.Files()),
		excluder: excluder,
		cache:    make(map[string]*string),
		logger:   logger,
	}, nil
}

// withExt returns in-scope files with one of the extensions.
func (w *workspace) withExt(exts ...string) []source.File {
	var out []source.File
	for _, f := range w.files {
		for _, ext := range exts {
			if f.Ext == ext {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// matching returns in-scope files whose base name matches the glob.
func (w *workspace) matching(pattern string, topLevelOnly bool) []source.File {
	var out []source.File
	for _, f := range w.files {
		if topLevelOnly && f.Depth != 0 {
			continue
		}
		if ok, _ := doublestar.Match(pattern, f.Name); ok {
			out = append(out, f)
		}
	}
	return out
}

// hasTopDir reports whether a top-level directory named name exists and is
// not excluded.
func (w *workspace) hasTopDir(name string) bool {
	return w.tree.IsDir(name) && !w.excluder.Excluded(name+"/")
}

// dirNamed reports whether any in-scope directory satisfies pred on its base
// name.
func (w *workspace) dirNamed(pred func(string) bool) bool {
	for _, d := range w.tree.Dirs() {
		if w.excluder.Excluded(d + "/") {
			continue
		}
		if pred(path.Base(d)) {
			return true
		}
	}
	return false
}

// text returns the file content, or false when it cannot be read as UTF-8.
func (w *workspace) text(f source.File) (string, bool) {
	if c, ok := w.cache[f.Rel]; ok {
		if c == nil {
			return "", false
		}
		return *c, true
	}
	content, err := source.ReadText(f.Path)
	if err != nil {
		w.logger.Debug("Skipping unreadable file", "path", f.Rel, "error", err)
		w.cache[f.Rel] = nil
		return "", false
	}
	w.cache[f.Rel] = &content
	return content, true
}

// anyContains reports whether any readable file contains any keyword.
func (w *workspace) anyContains(files []source.File, keywords ...string) bool {
	for _, f := range files {
		content, ok := w.text(f)
		if ok && containsAny(content, keywords...) {
			return true
		}
	}
	return false
}

// joined concatenates the readable contents of files.
func (w *workspace) joined(files []source.File) string {
	var b strings.Builder
	for _, f := range files {
		if content, ok := w.text(f); ok {
			b.WriteString(content)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// isCommentLine reports whether a script line is a comment or docstring line.
func isCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "#") || strings.Contains(trimmed, `"""`) || strings.Contains(trimmed, `'''`)
}

func newBase(name, description string, weight float64, excluder *source.Excluder, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{name: name, description: description, weight: weight, excluder: excluder, logger: logger}
}
