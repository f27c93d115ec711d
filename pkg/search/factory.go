package search

import (
	"sort"
	"sync"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/work"
)

// Builder converts a work item into backend operations.
type Builder interface {
	// AddToWorkQueue appends the operations for one work item to ops and
	// returns the extended slice. ops holds every operation produced so far
	// for the batch, so builders can detect work already covered by earlier
	// items.
	AddToWorkQueue(entity any, id string, kind work.Kind, ops []backend.Operation, f *Factory) ([]backend.Operation, error)
}

// Factory is the shared search context: it maps entity types to builders and
// records the backend factory in use.
type Factory struct {
	mu       sync.RWMutex
	builders map[string]Builder
	backend  backend.ProcessorFactory
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{builders: make(map[string]Builder)}
}

// Register maps entityType to b.
func (f *Factory) Register(entityType string, b Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[entityType] = b
}

// Builder returns the builder registered for entityType.
func (f *Factory) Builder(entityType string) (Builder, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.builders[entityType]
	return b, ok
}

// EntityTypes returns the registered entity types in sorted order.
func (f *Factory) EntityTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// SetBackend records the active backend factory.
func (f *Factory) SetBackend(b backend.ProcessorFactory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backend = b
}

// Backend returns the active backend factory, or nil before a processor has
// been created.
func (f *Factory) Backend() backend.ProcessorFactory {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.backend
}
