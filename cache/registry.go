package cache

import "sync"

// Handle is the narrow view of a Cache[V] the Registry needs: just enough
// to aggregate stats, regardless of the value type V.
type Handle interface {
	Name() string
	Stats() Stats
}

// Registry collects named cache handles so operational code can read
// aggregate stats across every cache instance in the process. This is the
// one "global" the design allows (Design Notes §9: a single CoreContext is
// constructed explicitly; registration here is its only side effect),
// mirroring the intent behind the teacher's module-level CACHE_REGISTRY.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]Handle
}

// DefaultRegistry is the process-wide registry. Constructing a Cache
// through New does not register it automatically — callers opt in via
// Register, keeping the registry free of caches built only for tests.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{caches: make(map[string]Handle)}
}

// Register adds (or replaces) a named cache handle.
func (r *Registry) Register(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caches[h.Name()] = h
}

// Unregister removes a named cache handle.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caches, name)
}

// StatsAll returns a snapshot of every registered cache's stats, keyed by name.
func (r *Registry) StatsAll() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Stats, len(r.caches))
	for name, h := range r.caches {
		out[name] = h.Stats()
	}
	return out
}
