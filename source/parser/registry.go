package parser

import (
	"path/filepath"
	"strings"
	"sync"
)

// Kind groups file extensions by the kind of syntax check they receive.
type Kind string

const (
	KindUnknown  Kind = ""
	KindMarkdown Kind = "markdown"
	KindScript   Kind = "script"
	KindData     Kind = "data"
)

// Registry maps file extensions to check kinds.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

// DefaultRegistry is the registry with the built-in extensions.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a registry with the built-in extensions.
func NewRegistry() *Registry {
	r := &Registry{kinds: make(map[string]Kind)}

	r.Register(KindMarkdown, ".md")
	r.Register(KindScript, ".py", ".ps1", ".sh")
	r.Register(KindData, ".json", ".yaml", ".yml")

	return r
}

// Register associates extensions with a kind. Later registrations replace
// earlier ones for the same extension.
func (r *Registry) Register(kind Kind, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.kinds[strings.ToLower(ext)] = kind
	}
}

// KindOf returns the kind for filename based on its extension.
func (r *Registry) KindOf(filename string) Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kinds[strings.ToLower(filepath.Ext(filename))]
}
