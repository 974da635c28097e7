package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownBackend is returned when configuration names a backend that no
// package registered. It wraps ErrBadConfig.
var ErrUnknownBackend = fmt.Errorf("%w: unknown backend", ErrBadConfig)

var (
	backends  = map[string]Factory{}
	backendMu sync.RWMutex
)

// Factory builds a store backend from its JSON parameters. Backends register
// a Factory under their name from an init function.
type Factory interface {
	Build(ctx context.Context, config json.RawMessage) (Interface, error)
	Valid(config json.RawMessage) error
}

// Register makes a backend available by name. Registering a name twice
// replaces the earlier factory.
func Register(name string, f Factory) {
	if name == "" || f == nil {
		panic("store: Register needs a name and a factory")
	}

	backendMu.Lock()
	defer backendMu.Unlock()
	backends[name] = f
}

func Get(name string) (Factory, bool) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	f, ok := backends[name]
	return f, ok
}

func lookup(name string) (Factory, error) {
	f, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("%w %q (have %v)", ErrUnknownBackend, name, Methods())
	}
	return f, nil
}

// Valid checks the parameters of the named backend without opening it.
func Valid(name string, config json.RawMessage) error {
	f, err := lookup(name)
	if err != nil {
		return err
	}

	if err := f.Valid(config); err != nil {
		if errors.Is(err, ErrBadConfig) {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrBadConfig, name, err)
	}
	return nil
}

// Build looks up the named backend and builds it with the given parameters.
func Build(ctx context.Context, name string, config json.RawMessage) (Interface, error) {
	f, err := lookup(name)
	if err != nil {
		return nil, err
	}

	return f.Build(ctx, config)
}

// Methods lists the registered backend names in order.
func Methods() []string {
	backendMu.RLock()
	defer backendMu.RUnlock()

	result := make([]string, 0, len(backends))
	for name := range backends {
		result = append(result, name)
	}
	slices.Sort(result)
	return result
}
