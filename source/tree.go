// Package source enumerates the files of a workflow directory and decides
// which of them are in scope for validation and scoring.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrNotDirectory is returned when a workflow root exists but is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrInvalidUTF8 is returned by ReadText for files that do not decode as UTF-8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8 content")
)

// File is one regular file found under a workflow root.
type File struct {
	// Path is the absolute (or root-joined) path on disk.
	Path string
	// Rel is the slash-separated path relative to the root.
	Rel string
	// Name is the base name.
	Name string
	// Ext is the lower-case extension including the dot.
	Ext string
	// ModTime is the last modification time reported by the file system.
	ModTime time.Time
	// Depth is the number of directories between the root and the file.
	Depth int
}

// Tree is a read-only snapshot of a workflow directory.
type Tree struct {
	root  string
	files []File
	dirs  []string
}

// CheckRoot verifies that root exists and is a directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat workflow dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}
	return nil
}

// Open walks root recursively and returns a snapshot of its files.
// Unreadable subdirectories are skipped rather than failing the walk.
func Open(root string) (*Tree, error) {
	if err := CheckRoot(root); err != nil {
		return nil, err
	}

	t := &Tree{root: root}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			t.dirs = append(t.dirs, rel)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, infoErr := d.Info()
		var mod time.Time
		if infoErr == nil {
			mod = info.ModTime()
		}
		t.files = append(t.files, File{
			Path:    path,
			Rel:     rel,
			Name:    d.Name(),
			Ext:     strings.ToLower(filepath.Ext(d.Name())),
			ModTime: mod,
			Depth:   strings.Count(rel, "/"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk workflow dir: %w", err)
	}

	sort.Slice(t.files, func(i, j int) bool { return t.files[i].Rel < t.files[j].Rel })
	sort.Strings(t.dirs)
	return t, nil
}

// Root returns the directory the tree was opened on.
func (t *Tree) Root() string {
	return t.root
}

// Files returns every regular file in lexical order of relative path.
func (t *Tree) Files() []File {
	return t.files
}

// Dirs returns the relative paths of every subdirectory.
func (t *Tree) Dirs() []string {
	return t.dirs
}

// WithExt returns the files whose extension is one of exts.
func (t *Tree) WithExt(exts ...string) []File {
	var out []File
	for _, f := range t.files {
		for _, ext := range exts {
			if f.Ext == ext {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// TopLevel returns the files directly under the root.
func (t *Tree) TopLevel() []File {
	var out []File
	for _, f := range t.files {
		if f.Depth == 0 {
			out = append(out, f)
		}
	}
	return out
}

// Exists reports whether rel (slash-separated, relative to the root) exists.
func (t *Tree) Exists(rel string) bool {
	_, err := os.Stat(t.Join(rel))
	return err == nil
}

// IsDir reports whether rel exists and is a directory.
func (t *Tree) IsDir(rel string) bool {
	info, err := os.Stat(t.Join(rel))
	return err == nil && info.IsDir()
}

// Join resolves a slash-separated relative path against the root.
func (t *Tree) Join(rel string) string {
	return filepath.Join(t.root, filepath.FromSlash(rel))
}

// ReadText reads a file as UTF-8 text.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrInvalidUTF8)
	}
	return string(data), nil
}
