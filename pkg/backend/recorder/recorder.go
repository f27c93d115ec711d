package recorder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
)

// Name is the registered name of the recorder backend.
const Name = "recorder"

func init() {
	backend.Register(Name, func() (backend.ProcessorFactory, error) {
		return New(), nil
	})
}

// Config configures the recorder, read from "recorder."-prefixed
// properties.
type Config struct {
	// Delay adds artificial latency before each batch is recorded.
	Delay time.Duration `mapstructure:"delay"`

	// Fail makes every batch fail with this message when set.
	Fail string `mapstructure:"fail"`
}

// Batch is one executed unit.
type Batch struct {
	Operations []backend.Operation
	Started    time.Time
	Finished   time.Time
	Err        error
}

// Factory records every batch it executes instead of writing an index. It
// is used for dry runs and to verify dispatch in tests.
type Factory struct {
	mu          sync.RWMutex
	cfg         Config
	batches     []Batch
	initialized int
	shared      any
	logger      hclog.Logger
}

// New returns a recorder.
func New() *Factory {
	return &Factory{logger: hclog.NewNullLogger()}
}

// Name returns the backend name.
func (f *Factory) Name() string {
	return Name
}

// SetLogger implements backend.Logged.
func (f *Factory) SetLogger(logger hclog.Logger) {
	f.logger = logger.Named("recorder-backend")
}

// Initialize implements backend.ProcessorFactory.
func (f *Factory) Initialize(props backend.Properties, shared any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := props.Decode(Name, &f.cfg); err != nil {
		return err
	}
	f.initialized++
	f.shared = shared
	return nil
}

// GetProcessor implements backend.ProcessorFactory.
func (f *Factory) GetProcessor(ops []backend.Operation) backend.Processor {
	return func(ctx context.Context) error {
		f.mu.RLock()
		cfg := f.cfg
		f.mu.RUnlock()

		b := Batch{Operations: ops, Started: time.Now()}

		if cfg.Delay > 0 {
			select {
			case <-time.After(cfg.Delay):
			case <-ctx.Done():
				b.Err = ctx.Err()
			}
		}
		if b.Err == nil && cfg.Fail != "" {
			b.Err = errors.New(cfg.Fail)
		}
		b.Finished = time.Now()

		f.mu.Lock()
		f.batches = append(f.batches, b)
		f.mu.Unlock()

		f.logger.Debug("recorded batch", "operations", len(ops), "error", b.Err)
		return b.Err
	}
}

// SetDelay changes the latency added to each batch.
func (f *Factory) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg.Delay = d
}

// SetFailure makes batches fail with msg; an empty msg restores success.
func (f *Factory) SetFailure(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg.Fail = msg
}

// Batches returns a copy of the recorded batches.
func (f *Factory) Batches() []Batch {
	f.mu.RLock()
	defer f.mu.RUnlock()

	batches := make([]Batch, len(f.batches))
	copy(batches, f.batches)
	return batches
}

// Operations returns every recorded operation in execution order.
func (f *Factory) Operations() []backend.Operation {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var ops []backend.Operation
	for _, b := range f.batches {
		ops = append(ops, b.Operations...)
	}
	return ops
}

// Initialized returns how many times Initialize was called.
func (f *Factory) Initialized() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.initialized
}

// Shared returns the shared context passed to Initialize.
func (f *Factory) Shared() any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.shared
}

// Reset clears recorded batches.
func (f *Factory) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = nil
}
