package algolia

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
)

// Name is the registered name of the Algolia backend.
const Name = "algolia"

// ErrCredentialsRequired is returned by Initialize without an app ID and key.
var ErrCredentialsRequired = errors.New("algolia app_id and api_key credentials required")

func init() {
	backend.Register(Name, func() (backend.ProcessorFactory, error) {
		return NewFactory(), nil
	})
}

// Config is the configuration for interacting with the Algolia API, read
// from "algolia."-prefixed properties.
type Config struct {
	// AppID is the Algolia Application ID.
	AppID string `mapstructure:"app_id"`

	// APIKey is an Algolia API key with write permissions.
	APIKey string `mapstructure:"api_key"`

	// IndexPrefix is prepended to every operation's index name.
	IndexPrefix string `mapstructure:"index_prefix"`

	// Wait blocks each call until Algolia has applied the task.
	Wait bool `mapstructure:"wait"`
}

// writer is the subset of an Algolia index used by the backend.
type writer interface {
	Save(objects []map[string]any, wait bool) error
	Delete(ids []string, wait bool) error
	Clear(wait bool) error
}

// index adapts *search.Index to writer.
type index struct {
	idx *search.Index
}

func (i index) Save(objects []map[string]any, wait bool) error {
	res, err := i.idx.SaveObjects(objects)
	if err != nil || !wait {
		return err
	}
	return res.Wait()
}

func (i index) Delete(ids []string, wait bool) error {
	res, err := i.idx.DeleteObjects(ids)
	if err != nil || !wait {
		return err
	}
	return res.Wait()
}

func (i index) Clear(wait bool) error {
	res, err := i.idx.ClearObjects()
	if err != nil || !wait {
		return err
	}
	return res.Wait()
}

// Factory writes operations to Algolia indexes.
type Factory struct {
	mu      sync.Mutex
	cfg     Config
	open    func(name string) writer
	indexes map[string]writer
	logger  hclog.Logger
}

// NewFactory returns an uninitialized Factory.
func NewFactory() *Factory {
	return &Factory{
		indexes: make(map[string]writer),
		logger:  hclog.NewNullLogger(),
	}
}

// Name returns the backend name.
func (f *Factory) Name() string {
	return Name
}

// SetLogger implements backend.Logged.
func (f *Factory) SetLogger(logger hclog.Logger) {
	f.logger = logger.Named("algolia-backend")
}

// Initialize implements backend.ProcessorFactory.
func (f *Factory) Initialize(props backend.Properties, _ any) error {
	if err := props.Decode(Name, &f.cfg); err != nil {
		return err
	}
	if f.cfg.AppID == "" || f.cfg.APIKey == "" {
		return ErrCredentialsRequired
	}

	if f.open == nil {
		client := search.NewClient(f.cfg.AppID, f.cfg.APIKey)
		f.open = func(name string) writer {
			return index{idx: client.InitIndex(name)}
		}
	}

	f.logger.Info("initialized algolia backend", "app_id", f.cfg.AppID, "index_prefix", f.cfg.IndexPrefix)
	return nil
}

// GetProcessor implements backend.ProcessorFactory. Consecutive operations of
// the same kind on the same index are sent in one request.
func (f *Factory) GetProcessor(ops []backend.Operation) backend.Processor {
	return func(ctx context.Context) error {
		for _, g := range group(ops) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := f.send(g); err != nil {
				return fmt.Errorf("failed to %s %d objects in %s: %w", g.kind, len(g.ops), f.indexName(g.index), err)
			}
		}
		f.logger.Debug("sent operations", "operations", len(ops))
		return nil
	}
}

func (f *Factory) send(g opGroup) error {
	w := f.writer(g.index)

	switch g.kind {
	case backend.OpAdd:
		objects := make([]map[string]any, 0, len(g.ops))
		for _, op := range g.ops {
			obj := make(map[string]any, len(op.Document)+1)
			for k, v := range op.Document {
				obj[k] = v
			}
			obj["objectID"] = op.ID
			objects = append(objects, obj)
		}
		return w.Save(objects, f.cfg.Wait)

	case backend.OpDelete:
		ids := make([]string, 0, len(g.ops))
		for _, op := range g.ops {
			ids = append(ids, op.ID)
		}
		return w.Delete(ids, f.cfg.Wait)

	case backend.OpPurgeAll:
		return w.Clear(f.cfg.Wait)

	default:
		return fmt.Errorf("unsupported operation: %s", g.kind)
	}
}

func (f *Factory) indexName(name string) string {
	return f.cfg.IndexPrefix + name
}

func (f *Factory) writer(name string) writer {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = f.indexName(name)
	w, ok := f.indexes[name]
	if !ok {
		w = f.open(name)
		f.indexes[name] = w
	}
	return w
}

type opGroup struct {
	kind  backend.OpKind
	index string
	ops   []backend.Operation
}

// group splits ops into runs of the same kind and index. Purge-all
// operations are never merged.
func group(ops []backend.Operation) []opGroup {
	var groups []opGroup
	for _, op := range ops {
		name := op.Index
		if name == "" {
			name = op.EntityType
		}

		if n := len(groups); n > 0 {
			last := &groups[n-1]
			if last.kind == op.Kind && last.index == name && op.Kind != backend.OpPurgeAll {
				last.ops = append(last.ops, op)
				continue
			}
		}
		groups = append(groups, opGroup{kind: op.Kind, index: name, ops: []backend.Operation{op}})
	}
	return groups
}
