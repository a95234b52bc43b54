package extension

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps package names to compiled-in registrations.
type Registry struct {
	mu   sync.RWMutex
	regs map[string]*Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{regs: map[string]*Registration{}}
}

// Register makes reg available under the package name. It panics if reg is
// nil or the name is already taken.
func (r *Registry) Register(name string, reg *Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg == nil {
		panic(fmt.Sprintf("extension: Register registration for %q is nil", name))
	}
	if _, dup := r.regs[name]; dup {
		panic(fmt.Sprintf("extension: Register called twice for %q", name))
	}
	r.regs[name] = reg
}

// Lookup returns the registration for name.
func (r *Registry) Lookup(name string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[name]
	return reg, ok
}

// Names returns the registered package names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.regs))
	for name := range r.regs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Register adds reg to the default registry. Extension packages call it
// from init.
func Register(name string, reg *Registration) {
	defaultRegistry.Register(name, reg)
}

// Registered returns the package names in the default registry.
func Registered() []string {
	return defaultRegistry.Names()
}
