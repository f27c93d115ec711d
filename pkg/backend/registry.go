package backend

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrBackendNotFound is returned when no backend is registered under a name.
var ErrBackendNotFound = errors.New("backend not found")

// ConfigurationError reports a backend that could not be located, created or
// initialized.
type ConfigurationError struct {
	Backend string // Backend name from the configuration
	Err     error  // Underlying error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unable to find/create processor factory %q: %v", e.Backend, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Constructor creates an uninitialized ProcessorFactory.
type Constructor func() (ProcessorFactory, error)

// Registry maps backend names to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// DefaultRegistry is the registry used when a processor is not given one.
// Backend packages register themselves here from init.
var DefaultRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor under name, replacing any previous one. Names
// are case-insensitive.
func (r *Registry) Register(name string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[strings.ToLower(name)] = c
}

// Lookup returns the constructor registered under name.
func (r *Registry) Lookup(name string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.constructors[strings.ToLower(name)]
	return c, ok
}

// New constructs the factory registered under name. Failures are returned as
// *ConfigurationError.
func (r *Registry) New(name string) (ProcessorFactory, error) {
	c, ok := r.Lookup(name)
	if !ok {
		return nil, &ConfigurationError{Backend: name, Err: ErrBackendNotFound}
	}

	f, err := c()
	if err != nil {
		return nil, &ConfigurationError{Backend: name, Err: err}
	}
	if f == nil {
		return nil, &ConfigurationError{Backend: name, Err: errors.New("constructor returned nil factory")}
	}

	return f, nil
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds a constructor to DefaultRegistry.
func Register(name string, c Constructor) {
	DefaultRegistry.Register(name, c)
}
