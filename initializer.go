package track

import (
	"reflect"
	"sync"
)

// Initializer discovers the key and properties to track for a freshly
// created Configuration. Running it twice on the same configuration must
// only overwrite the same bindings.
type Initializer interface {
	Initialize(cfg *Configuration) error
}

// InitializerFunc adapts a function to Initializer.
type InitializerFunc func(cfg *Configuration) error

// Initialize implements Initializer.
func (f InitializerFunc) Initialize(cfg *Configuration) error {
	if f == nil {
		return nil
	}
	return f(cfg)
}

type interfaceInitializer struct {
	iface reflect.Type
	init  Initializer
}

// initializerRegistry selects the most specific initializer for a target
// type: the exact type, then the pointed-to type, then registered interface
// types in registration order, then the fallback.
type initializerRegistry struct {
	mu       sync.RWMutex
	exact    map[reflect.Type]Initializer
	ifaces   []interfaceInitializer
	fallback Initializer
}

func newInitializerRegistry(fallback Initializer) *initializerRegistry {
	return &initializerRegistry{
		exact:    map[reflect.Type]Initializer{},
		fallback: fallback,
	}
}

func (r *initializerRegistry) register(t reflect.Type, init Initializer) {
	if t == nil || init == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Kind() == reflect.Interface {
		for i, entry := range r.ifaces {
			if entry.iface == t {
				r.ifaces[i].init = init
				return
			}
		}
		r.ifaces = append(r.ifaces, interfaceInitializer{iface: t, init: init})
		return
	}
	r.exact[t] = init
}

func (r *initializerRegistry) lookup(t reflect.Type) Initializer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if init, ok := r.exact[t]; ok {
		return init
	}
	if t.Kind() == reflect.Pointer {
		if init, ok := r.exact[t.Elem()]; ok {
			return init
		}
	}
	for _, entry := range r.ifaces {
		if t.Implements(entry.iface) {
			return entry.init
		}
	}
	if r.fallback != nil {
		return r.fallback
	}
	return TagInitializer{}
}

// Target returns the live target, if still reachable. Callers must not
// retain it beyond the current call.
func (c *Configuration) Target() (any, bool) {
	target, ok := c.target.resolve()
	if !ok {
		return nil, false
	}
	return target.Interface(), true
}
