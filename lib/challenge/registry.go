package challenge

import (
	"fmt"
	"sort"
	"sync"
)

var (
	factories   map[Type]Factory = map[Type]Factory{}
	factoryLock sync.RWMutex
)

// Register makes a Factory available under t. Implementation packages call it
// from init.
func Register(t Type, f Factory) {
	factoryLock.Lock()
	defer factoryLock.Unlock()

	factories[t] = f
}

// GetFactory returns the Factory registered for t.
func GetFactory(t Type) (Factory, bool) {
	factoryLock.RLock()
	defer factoryLock.RUnlock()
	result, ok := factories[t]
	return result, ok
}

// Methods lists the registered type names.
func Methods() []string {
	factoryLock.RLock()
	defer factoryLock.RUnlock()
	var result []string
	for t := range factories {
		result = append(result, string(t))
	}
	sort.Strings(result)
	return result
}

// Registry resolves challenge types to processors. It is filled during
// bootstrap and then built once, which injects it into every RegistryAware
// implementation. Processors never look at the registry while they are being
// constructed.
type Registry struct {
	lock  sync.RWMutex
	impls map[Type]Impl
	built bool
}

// NewRegistry registers impls in order and builds the registry.
func NewRegistry(impls ...Impl) *Registry {
	result := &Registry{}
	for _, impl := range impls {
		result.Register(impl)
	}

	return result.Build()
}

// Register adds impl under its type. A later registration for the same type
// replaces the earlier one. Registering after Build injects the registry
// immediately.
func (r *Registry) Register(impl Impl) {
	r.lock.Lock()
	if r.impls == nil {
		r.impls = map[Type]Impl{}
	}
	r.impls[impl.Type()] = impl
	built := r.built
	r.lock.Unlock()

	if built {
		if ra, ok := impl.(RegistryAware); ok {
			ra.SetRegistry(r)
		}
	}
}

// Build finishes bootstrap.
func (r *Registry) Build() *Registry {
	r.lock.Lock()
	r.built = true
	impls := make([]Impl, 0, len(r.impls))
	for _, impl := range r.impls {
		impls = append(impls, impl)
	}
	r.lock.Unlock()

	for _, impl := range impls {
		if ra, ok := impl.(RegistryAware); ok {
			ra.SetRegistry(r)
		}
	}

	return r
}

// Get returns the processor for t.
func (r *Registry) Get(t Type) (Impl, bool) {
	if r == nil {
		return nil, false
	}

	r.lock.RLock()
	defer r.lock.RUnlock()
	result, ok := r.impls[t]
	return result, ok
}

// Lookup resolves an untrusted type name. Unknown names report false.
func (r *Registry) Lookup(name string) (Impl, bool) {
	t, err := ParseType(name)
	if err != nil {
		return nil, false
	}

	return r.Get(t)
}

// Types lists the registered types in canonical order.
func (r *Registry) Types() []Type {
	var result []Type
	for _, t := range Types() {
		if _, ok := r.Get(t); ok {
			result = append(result, t)
		}
	}
	return result
}

// BuildAll builds one processor per config from the registered factories.
func BuildAll(store Store, configs []TypeConfig, overrides map[Type]BuildInput) (*Registry, error) {
	result := &Registry{}

	for _, cfg := range configs {
		f, ok := GetFactory(cfg.Type)
		if !ok {
			return nil, NewError(KindIllegalChallengeType, cfg.Type, fmt.Errorf("%w: %s", ErrUnknownType, cfg.Type))
		}

		in := overrides[cfg.Type]
		in.Config = cfg
		if in.Store == nil {
			in.Store = store
		}

		impl, err := f.Build(in)
		if err != nil {
			return nil, fmt.Errorf("can't build %s challenge: %w", cfg.Type, err)
		}

		result.Register(impl)
	}

	return result.Build(), nil
}
