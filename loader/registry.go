// Package loader implements the Loader registry referenced by spec.md §9's
// normative Open Question resolution: Loader selection happens through a
// string Enum Parameter validated against a registry ID, not a Go type
// switch. Grounded on the teacher's etl/registry.go pattern of keying
// pluggable implementations by a short string ID and answering
// enumeration queries over the bus.
package loader

import (
	"sort"
	"sync"

	"github.com/harvestrt/harvestrt/bus"
	"github.com/harvestrt/harvestrt/cmn"
	"github.com/harvestrt/harvestrt/etl"
)

// Registry maps a short string ID (e.g. "elasticsearch", "disk") to the
// etl.LoaderFactory that builds it, and answers GetLoaderNamesEvent so
// Configuration can validate a Loader-selection Enum Parameter against the
// currently-registered set.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]etl.LoaderFactory
}

// New constructs an empty Registry and wires it to answer
// bus.GetLoaderNamesEvent on b.
func New(b *bus.Bus) *Registry {
	r := &Registry{byName: make(map[string]etl.LoaderFactory)}
	b.AddSynchronousListener(bus.EvGetLoaderNames, func(bus.Event) interface{} {
		return r.Names()
	})
	return r
}

// Register adds a named Loader factory. A duplicate name is an
// InvalidArgumentError.
func (r *Registry) Register(name string, factory etl.LoaderFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[name]; dup {
		return cmn.NewInvalidArgumentError("loader %q already registered", name)
	}
	r.byName[name] = factory
	return nil
}

// Get returns the factory registered under name, and whether it was found.
func (r *Registry) Get(name string) (etl.LoaderFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byName[name]
	return f, ok
}

// Names returns every registered Loader ID, sorted for determinism — the
// answer to GetLoaderNamesEvent.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
