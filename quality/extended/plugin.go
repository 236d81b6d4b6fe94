// Package extended provides an optional second family of quality plugins
// (security, performance, test coverage) whose scores can replace standard
// dimensions through configured weighted blends.
package extended

import (
	"log/slog"
	"path"
	"strings"

	"github.com/c360studio/wfvalidate/source"
)

// Plugin scores a workflow directory on a 0-10 scale.
type Plugin interface {
	Name() string
	Version() string
	Description() string
	// Weight is the default weight when the configuration sets none.
	Weight() float64
	Assess(dir string) (float64, error)
}

// Info describes a registered plugin.
type Info struct {
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

type meta struct {
	name        string
	description string
	excluder    *source.Excluder
	logger      *slog.Logger
}

func (m meta) Name() string        { return m.name }
func (m meta) Version() string     { return "1.0.0" }
func (m meta) Description() string { return m.description }
func (m meta) Weight() float64     { return 1.0 }

func newMeta(name, description string, excluder *source.Excluder, logger *slog.Logger) meta {
	if logger == nil {
		logger = slog.Default()
	}
	return meta{name: name, description: description, excluder: excluder, logger: logger}
}

// ratioScore converts passed/total checks to a 0-10 score.
func ratioScore(passed, total float64) float64 {
	if total == 0 {
		return 0
	}
	return passed / total * 10
}

// files is the in-scope file set of one directory.
type files struct {
	tree  *source.Tree
	all   []source.File
	texts map[string]string
}

func scan(dir string, excluder *source.Excluder) (*files, error) {
	tree, err := source.Open(dir)
	if err != nil {
		return nil, err
	}
	return &files{tree: tree, all: excluder.Filter(tree.Files()), texts: make(map[string]string)}, nil
}

func (fs *files) withExt(ext string) []source.File {
	var out []source.File
	for _, f := range fs.all {
		if f.Ext == ext {
			out = append(out, f)
		}
	}
	return out
}

func (fs *files) lookup(rel string) (source.File, bool) {
	for _, f := range fs.all {
		if f.Rel == rel {
			return f, true
		}
	}
	return source.File{}, false
}

// text returns the file content; unreadable files read as empty.
func (fs *files) text(f source.File) string {
	if t, ok := fs.texts[f.Rel]; ok {
		return t
	}
	t, err := source.ReadText(f.Path)
	if err != nil {
		t = ""
	}
	fs.texts[f.Rel] = t
	return t
}

// scriptsContain reports whether any Python file contains any keyword.
func (fs *files) scriptsContain(keywords ...string) bool {
	for _, f := range fs.withExt(".py") {
		content := fs.text(f)
		for _, k := range keywords {
			if strings.Contains(content, k) {
				return true
			}
		}
	}
	return false
}

func isTestFile(f source.File) bool {
	if f.Ext != ".py" {
		return false
	}
	return strings.HasPrefix(f.Name, "test_") ||
		strings.HasSuffix(f.Name, "_test.py") ||
		path.Base(path.Dir(f.Rel)) == "tests"
}
