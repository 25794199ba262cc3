// Registry for named domain.Model factories, so configuration can
// select a model adapter by string key instead of wiring code needing
// to know every adapter that exists.
//
// Plugin registration: adapters register a factory in an init()
// function using RegisterFactory(). cmd/frauddetect resolves
// config.Model.Name through Get().
package model

import (
	"fmt"
	"sync"

	"github.com/fraudpipeline/core/internal/domain"
)

// Factory builds a domain.Model instance, optionally deterministic if
// seed is non-nil.
type Factory func(seed *uint64) domain.Model

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// RegisterFactory registers a named model factory. Panics if name is
// already registered.
func RegisterFactory(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("model: factory %q already registered", name))
	}
	registry[name] = f
}

// Get returns the factory registered under name.
func Get(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("model: %q not registered (available: %v)", name, listNames())
	}
	return f, nil
}

// List returns the names of all registered factories.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return listNames()
}

func listNames() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	return names
}

func init() {
	RegisterFactory("demo", func(seed *uint64) domain.Model { return NewDemo(seed) })
	RegisterFactory("bench", func(seed *uint64) domain.Model { return NewBench() })
}
