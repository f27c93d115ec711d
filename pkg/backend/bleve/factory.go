package bleve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
)

// Name is the registered name of the bleve backend.
const Name = "bleve"

const defaultIndexPath = "./data/index"

func init() {
	backend.Register(Name, func() (backend.ProcessorFactory, error) {
		return NewFactory(), nil
	})
}

// Config contains Bleve configuration, read from "bleve."-prefixed
// properties.
type Config struct {
	IndexPath string `mapstructure:"index_path"` // Base path for all indexes
}

// Factory is the built-in backend. It keeps one embedded Bleve index per
// operation index name under the configured path.
type Factory struct {
	mu      sync.Mutex
	cfg     Config
	indexes map[string]bleve.Index
	logger  hclog.Logger
}

// NewFactory returns an uninitialized Factory.
func NewFactory() *Factory {
	return &Factory{
		indexes: make(map[string]bleve.Index),
		logger:  hclog.NewNullLogger(),
	}
}

// Name returns the backend name.
func (f *Factory) Name() string {
	return Name
}

// SetLogger implements backend.Logged.
func (f *Factory) SetLogger(logger hclog.Logger) {
	f.logger = logger.Named("bleve-backend")
}

// Initialize implements backend.ProcessorFactory.
func (f *Factory) Initialize(props backend.Properties, _ any) error {
	if err := props.Decode(Name, &f.cfg); err != nil {
		return err
	}
	if f.cfg.IndexPath == "" {
		f.cfg.IndexPath = defaultIndexPath
	}

	if err := os.MkdirAll(f.cfg.IndexPath, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	f.logger.Info("initialized bleve backend", "index_path", f.cfg.IndexPath)
	return nil
}

// GetProcessor implements backend.ProcessorFactory. Units from the same
// factory are applied one at a time.
func (f *Factory) GetProcessor(ops []backend.Operation) backend.Processor {
	return func(ctx context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.apply(ctx, ops)
	}
}

// apply writes ops in order. Operations are collected into one batch per
// index; a batch keeps only the last operation per document ID, which gives
// the same result as applying them one by one. A purge flushes its index's
// pending batch first.
func (f *Factory) apply(ctx context.Context, ops []backend.Operation) error {
	batches := make(map[string]*bleve.Batch)
	var order []string

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := indexName(op)
		idx, err := f.index(name)
		if err != nil {
			return err
		}

		if op.Kind == backend.OpPurgeAll {
			if b := batches[name]; b != nil && b.Size() > 0 {
				if err := idx.Batch(b); err != nil {
					return fmt.Errorf("failed to flush batch for %s: %w", name, err)
				}
			}
			delete(batches, name)
			if err := f.clear(name); err != nil {
				return err
			}
			continue
		}

		b, ok := batches[name]
		if !ok {
			b = idx.NewBatch()
			batches[name] = b
			if !slices.Contains(order, name) {
				order = append(order, name)
			}
		}

		switch op.Kind {
		case backend.OpAdd:
			if err := b.Index(op.ID, op.Document); err != nil {
				return fmt.Errorf("failed to add document to batch: %w", err)
			}
		case backend.OpDelete:
			b.Delete(op.ID)
		default:
			return fmt.Errorf("unsupported operation: %s", op.Kind)
		}
	}

	for _, name := range order {
		b := batches[name]
		if b == nil || b.Size() == 0 {
			continue
		}
		if err := f.indexes[name].Batch(b); err != nil {
			return fmt.Errorf("failed to apply batch to %s: %w", name, err)
		}
	}

	f.logger.Debug("applied operations", "operations", len(ops), "indexes", len(order))
	return nil
}

func indexName(op backend.Operation) string {
	if op.Index != "" {
		return op.Index
	}
	return op.EntityType
}

// index returns the open index for name, opening or creating it as needed.
// Callers must hold f.mu.
func (f *Factory) index(name string) (bleve.Index, error) {
	if idx, ok := f.indexes[name]; ok {
		return idx, nil
	}

	idx, err := openOrCreateIndex(f.path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", name, err)
	}
	f.indexes[name] = idx
	return idx, nil
}

func (f *Factory) path(name string) string {
	return filepath.Join(f.cfg.IndexPath, name+".bleve")
}

// clear removes every document from the index by recreating it. Callers
// must hold f.mu.
func (f *Factory) clear(name string) error {
	if err := f.indexes[name].Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	delete(f.indexes, name)

	if err := os.RemoveAll(f.path(name)); err != nil {
		return fmt.Errorf("failed to remove index: %w", err)
	}

	idx, err := bleve.New(f.path(name), bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to recreate index: %w", err)
	}
	f.indexes[name] = idx

	f.logger.Info("purged index", "index", name)
	return nil
}

// openOrCreateIndex opens an existing Bleve index or creates a new one.
func openOrCreateIndex(path string) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return bleve.New(path, bleve.NewIndexMapping())
	}
	return idx, err
}

// DocCount returns the number of documents in the named index.
func (f *Factory) DocCount(name string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx, err := f.index(name)
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

// Contains reports whether the named index holds a document with id.
func (f *Factory) Contains(name, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx, err := f.index(name)
	if err != nil {
		return false, err
	}
	doc, err := idx.Document(id)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

// Close closes all open indexes.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result error
	for name, idx := range f.indexes {
		if err := idx.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close %s index: %w", name, err))
		}
	}
	f.indexes = make(map[string]bleve.Index)

	return result
}
