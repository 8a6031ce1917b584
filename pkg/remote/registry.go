package remote

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Factory constructs a GraphStore backend from client config
type Factory func(cfg Config, logger zerolog.Logger) (GraphStore, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a backend under a name. Registering a duplicate name panics:
// it can only happen from conflicting init() calls.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("remote backend %q registered twice", name))
	}
	registry[name] = factory
}

// New constructs the named backend
func New(name string, cfg Config, logger zerolog.Logger) (GraphStore, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown remote backend %q (available: %v)", name, Backends())
	}
	return factory(cfg, logger)
}

// Backends returns the registered backend names, sorted
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("graph-rest", func(cfg Config, logger zerolog.Logger) (GraphStore, error) {
		return NewClient(cfg, logger)
	})
}
