package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/wfvalidate/source"
)

type batches struct {
	mu  sync.Mutex
	all [][]Change
}

func (b *batches) handle(_ context.Context, changes []Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, changes)
}

func (b *batches) flat() []Change {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Change
	for _, batch := range b.all {
		out = append(out, batch...)
	}
	return out
}

func startWatcher(t *testing.T, root string, b *batches) {
	t.Helper()
	w, err := New(Config{
		Root:     root,
		Debounce: 20 * time.Millisecond,
		Excluder: source.NewExcluder(nil, nil),
	}, b.handle)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	// let Run register its watches
	time.Sleep(50 * time.Millisecond)
}

func TestNew_InvalidRoot(t *testing.T) {
	_, err := New(Config{Root: filepath.Join(t.TempDir(), "missing")}, func(context.Context, []Change) {})
	assert.Error(t, err)
}

func TestWatcher_ReportsChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# A\n"), 0644))

	b := &batches{}
	startWatcher(t, root, b)

	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# B\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.py"), []byte("x = 1\n"), 0644))

	assert.Eventually(t, func() bool { return len(b.flat()) >= 2 }, 2*time.Second, 20*time.Millisecond)

	ops := map[string]Operation{}
	for _, c := range b.flat() {
		ops[c.Path] = c.Operation
	}
	assert.Equal(t, OpModify, ops["README.md"])
	assert.Equal(t, OpCreate, ops["new.py"])
}

func TestWatcher_IgnoresExcludedAndUnchanged(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# A\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "temp"), 0755))

	b := &batches{}
	startWatcher(t, root, b)

	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# A\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "temp", "scratch.md"), []byte("x\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.backup.md"), []byte("x\n"), 0644))

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, b.flat())
}

func TestWatcher_NewDirectoryAndDelete(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "old.md"), []byte("# Old\n"), 0644))

	b := &batches{}
	startWatcher(t, root, b)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "tools"), 0755))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "tools", "helper.py"), []byte("x = 1\n"), 0644))
	require.NoError(t, os.Remove(filepath.Join(root, "old.md")))

	assert.Eventually(t, func() bool {
		ops := map[string]Operation{}
		for _, c := range b.flat() {
			ops[c.Path] = c.Operation
		}
		return ops["tools/helper.py"] == OpCreate && ops["old.md"] == OpDelete
	}, 2*time.Second, 20*time.Millisecond)
}
