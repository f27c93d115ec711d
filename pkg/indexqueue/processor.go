package indexqueue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend/bleve"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/search"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/work"
)

// ErrNotSealed is returned by PerformWorks for a queue that was not prepared.
var ErrNotSealed = errors.New("work queue has not been prepared")

const (
	defaultWorkers    = 4
	defaultQueueDepth = 64
)

// Processor batches work until it is prepared and performed. Prepared batches
// are executed by the configured backend either on the caller's goroutine or
// on a worker pool.
//
// A Processor is safe for concurrent use as long as each Queue is used by a
// single goroutine at a time.
type Processor struct {
	factory *search.Factory
	backend backend.ProcessorFactory
	sync    bool
	pool    *Pool
	logger  hclog.Logger

	registry      *backend.Registry
	batchSize     int
	workers       int
	queueDepth    int
	orderedLayers bool
	onError       func(error)
}

// Option is a functional option for creating a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRegistry sets the registry used to resolve non-default backends.
func WithRegistry(r *backend.Registry) Option {
	return func(p *Processor) {
		p.registry = r
	}
}

// WithBatchSize flushes a queue from Add once it holds n items. Zero, the
// default, disables flushing from Add.
func WithBatchSize(n int) Option {
	return func(p *Processor) {
		p.batchSize = n
	}
}

// WithWorkers sets the number of goroutines used for async execution.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		p.workers = n
	}
}

// WithQueueDepth sets how many async units may wait for a worker before
// PerformWorks blocks.
func WithQueueDepth(n int) Option {
	return func(p *Processor) {
		p.queueDepth = n
	}
}

// WithErrorHandler sets the function receiving async backend failures. The
// default logs them.
func WithErrorHandler(fn func(error)) Option {
	return func(p *Processor) {
		p.onError = fn
	}
}

// WithOrderedLayers converts collection work after all other work of a batch.
func WithOrderedLayers() Option {
	return func(p *Processor) {
		p.orderedLayers = true
	}
}

// New creates a Processor. props selects the execution mode and backend; the
// backend is initialized with the full props and recorded on factory.
func New(factory *search.Factory, props backend.Properties, opts ...Option) (*Processor, error) {
	if factory == nil {
		return nil, fmt.Errorf("search factory is required")
	}

	p := &Processor{
		factory:    factory,
		registry:   backend.DefaultRegistry,
		workers:    defaultWorkers,
		queueDepth: defaultQueueDepth,
		logger:     hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("indexqueue")

	// Default to sync if none defined.
	p.sync = !strings.EqualFold(props.Get(backend.PropExecution), "async")

	name := props.Get(backend.PropBackend)
	bf, err := p.newBackend(name)
	if err != nil {
		return nil, err
	}
	if l, ok := bf.(backend.Logged); ok {
		l.SetLogger(p.logger)
	}
	if err := bf.Initialize(props, factory); err != nil {
		return nil, &backend.ConfigurationError{Backend: backendName(name), Err: err}
	}
	p.backend = bf
	factory.SetBackend(bf)

	if !p.sync {
		if p.onError == nil {
			p.onError = func(err error) {
				p.logger.Error("async index batch failed", "error", err)
			}
		}
		p.pool = NewPool(p.workers, p.queueDepth, p.onError)
	}

	p.logger.Info("created queueing processor",
		"backend", backendName(name),
		"async", !p.sync,
		"batch_size", p.batchSize,
	)

	return p, nil
}

func (p *Processor) newBackend(name string) (backend.ProcessorFactory, error) {
	if name == "" || strings.EqualFold(name, backend.DefaultBackend) {
		return bleve.NewFactory(), nil
	}
	return p.registry.New(name)
}

func backendName(name string) string {
	if name == "" {
		return backend.DefaultBackend
	}
	return name
}

// Async reports whether batches are executed on the worker pool.
func (p *Processor) Async() bool {
	return !p.sync
}

// Backend returns the backend factory in use.
func (p *Processor) Backend() backend.ProcessorFactory {
	return p.backend
}

// Add appends w to q. When a batch size is configured and q has reached it,
// that many items are split off and prepared and performed at once.
func (p *Processor) Add(ctx context.Context, w *work.Work, q *work.Queue) error {
	q.Add(w)

	if p.batchSize > 0 && q.Len() >= p.batchSize {
		sub := q.Split(p.batchSize)
		p.logger.Debug("batch size reached, flushing",
			"queue", q.ID(),
			"batch", sub.ID(),
			"size", sub.Len(),
		)
		if err := p.PrepareWorks(sub); err != nil {
			return err
		}
		return p.PerformWorks(ctx, sub)
	}

	return nil
}

// PrepareWorks converts the items of q into backend operations and seals q
// with them. Items are removed from q as they are converted. PrepareWorks
// must be called at most once per queue; on error q is left partially
// drained and unsealed and must not be reused.
func (p *Processor) PrepareWorks(q *work.Queue) error {
	// Items added after this point are not part of the batch.
	n := q.Len()
	ops := make([]backend.Operation, 0, n)

	var err error
	for _, l := range layers {
		taken := q.Take(n, func(w *work.Work) bool {
			return l.accepts(w.Kind, p.orderedLayers)
		})
		n -= len(taken)

		ops, err = p.processLayer(taken, ops)
		if err != nil {
			return fmt.Errorf("failed to prepare %s layer: %w", l, err)
		}
	}

	q.Seal(ops)

	p.logger.Debug("prepared work queue",
		"queue", q.ID(),
		"operations", len(ops),
	)

	return nil
}

func (p *Processor) processLayer(items []*work.Work, ops []backend.Operation) ([]backend.Operation, error) {
	for i, w := range items {
		// Release the reference early; large batches hold both the work and
		// the operations otherwise.
		items[i] = nil

		entityType := w.Type()
		builder, ok := p.factory.Builder(entityType)
		if !ok {
			p.logger.Debug("no builder for entity type, skipping", "entity_type", entityType, "id", w.ID)
			continue
		}

		var err error
		ops, err = builder.AddToWorkQueue(w.Entity, w.ID, w.Kind, ops, p.factory)
		if err != nil {
			return ops, fmt.Errorf("failed to convert %s: %w", w, err)
		}
	}
	return ops, nil
}

// PerformWorks hands the sealed operations of q to the backend. In sync mode
// it returns once the backend is done, with its error. In async mode it
// returns as soon as the unit is queued; backend failures are then reported
// to the error handler only.
func (p *Processor) PerformWorks(ctx context.Context, q *work.Queue) error {
	sealed, ok := q.Sealed()
	if !ok {
		return ErrNotSealed
	}

	// The backend owns its copy; nothing touches it after handoff.
	ops := make([]backend.Operation, len(sealed))
	copy(ops, sealed)

	proc := p.backend.GetProcessor(ops)

	if p.sync {
		return proc(ctx)
	}

	if err := p.pool.Submit(ctx, proc); err != nil {
		return fmt.Errorf("failed to submit index batch: %w", err)
	}
	return nil
}

// CancelWorks discards the pending items of q without converting them.
func (p *Processor) CancelWorks(q *work.Queue) {
	if q.Len() == 0 {
		return
	}
	p.logger.Debug("cancelling work queue", "queue", q.ID(), "items", q.Len())
	q.Clear()
}

// Close waits for queued async batches and closes the backend when it holds
// resources.
func (p *Processor) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}

	if c, ok := p.backend.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close backend: %w", err)
		}
	}
	return nil
}
