// Package watch re-runs validation when files under a workflow directory
// change.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/c360studio/wfvalidate/source"
)

// DefaultDebounce is how long changes are collected before a flush.
const DefaultDebounce = 300 * time.Millisecond

// Operation is the kind of change seen for a file.
type Operation string

const (
	OpCreate Operation = "create"
	OpModify Operation = "modify"
	OpDelete Operation = "delete"
)

// Change is one file change, relative to the watched root.
type Change struct {
	Path      string
	Operation Operation
}

// Handler is called with each debounced batch of changes. Batches are
// delivered sequentially.
type Handler func(ctx context.Context, changes []Change)

// Config configures a Watcher.
type Config struct {
	// Root is the directory to watch.
	Root string
	// Debounce is how long to wait for more changes before flushing.
	Debounce time.Duration
	// Excluder drops changes to out-of-scope files.
	Excluder *source.Excluder
	Logger   *slog.Logger
}

// Watcher watches a workflow directory recursively.
type Watcher struct {
	cfg     Config
	handler Handler
	fsw     *fsnotify.Watcher
	logger  *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op // path → most recent operation

	// content hashes, to ignore writes that leave a file unchanged
	hashes map[string]string
}

// New creates a watcher that calls handler for every batch of changes.
func New(cfg Config, handler Handler) (*Watcher, error) {
	if err := source.CheckRoot(cfg.Root); err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:     cfg,
		handler: handler,
		fsw:     fsw,
		logger:  logger,
		pending: make(map[string]fsnotify.Op),
		hashes:  make(map[string]string),
	}, nil
}

// Run watches until ctx is cancelled, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if err := w.addWatchesRecursive(w.cfg.Root); err != nil {
		return fmt.Errorf("add watches: %w", err)
	}
	w.snapshot()
	w.logger.Info("Watching workflow directory", "root", w.cfg.Root, "debounce", w.cfg.Debounce)

	ticker := time.NewTicker(w.cfg.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleFSEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") && name != "."
}

// addWatchesRecursive adds watches to all non-hidden directories.
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		} else {
			w.logger.Debug("Watching directory", "path", path)
		}
		return nil
	})
}

// snapshot records the content hash of every existing file.
func (w *Watcher) snapshot() {
	tree, err := source.Open(w.cfg.Root)
	if err != nil {
		return
	}
	for _, f := range tree.Files() {
		if h, err := hashFile(f.Path); err == nil {
			w.hashes[f.Rel] = h
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !skipDir(filepath.Base(path)) {
				if err := w.addWatchesRecursive(path); err != nil {
					w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	rel, err := filepath.Rel(w.cfg.Root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if w.cfg.Excluder.Excluded(rel) {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("File change detected", "path", rel, "op", event.Op.String())
}

// flushPending turns accumulated events into changes and hands them to the
// handler in one batch.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	var changes []Change
	for path, op := range toProcess {
		rel, _ := filepath.Rel(w.cfg.Root, path)
		rel = filepath.ToSlash(rel)

		if _, err := os.Stat(path); op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) || os.IsNotExist(err) {
			if _, known := w.hashes[rel]; known {
				delete(w.hashes, rel)
				changes = append(changes, Change{Path: rel, Operation: OpDelete})
			}
			continue
		}

		hash, err := hashFile(path)
		if err != nil {
			w.logger.Debug("Skipping unreadable file", "path", rel, "error", err)
			continue
		}
		old, had := w.hashes[rel]
		if had && old == hash {
			continue
		}
		w.hashes[rel] = hash

		c := Change{Path: rel, Operation: OpModify}
		if !had {
			c.Operation = OpCreate
		}
		changes = append(changes, c)
	}

	if len(changes) == 0 || ctx.Err() != nil {
		return
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	w.logger.Info("Workflow directory changed", "changes", len(changes))
	w.handler(ctx, changes)
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
