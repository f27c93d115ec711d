package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"
)

// Property names recognized by the queueing processor.
const (
	// PropExecution selects "sync" (default) or "async" dispatch.
	PropExecution = "worker.execution"

	// PropBackend names the backend factory. Empty selects DefaultBackend.
	PropBackend = "worker.backend"
)

// DefaultBackend is the reserved name of the built-in backend.
const DefaultBackend = "bleve"

// Properties is the configuration bag handed to a processor and its backend.
type Properties map[string]string

// Get returns the value for key, or "" when unset.
func (p Properties) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Prefixed returns the properties under prefix with the prefix and its
// trailing dot removed, e.g. "bleve.index_path" becomes "index_path".
func (p Properties) Prefixed(prefix string) map[string]string {
	out := make(map[string]string)
	prefix = strings.TrimSuffix(prefix, ".") + "."
	for k, v := range p {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out
}

// Decode decodes the properties under prefix into out, a pointer to a struct
// using mapstructure tags. String values are converted to the field types.
func (p Properties) Decode(prefix string, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result: out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(p.Prefixed(prefix)); err != nil {
		return fmt.Errorf("failed to decode %s properties: %w", prefix, err)
	}
	return nil
}

// Processor is an executable unit of work produced for one sealed batch of
// operations.
type Processor func(ctx context.Context) error

// ProcessorFactory is implemented by index backends.
type ProcessorFactory interface {
	// Initialize is called once with the full processor properties and the
	// shared search context before any call to GetProcessor.
	Initialize(props Properties, shared any) error

	// GetProcessor returns a unit that applies ops. The factory must not
	// modify ops.
	GetProcessor(ops []Operation) Processor
}

// Named is implemented by factories that report their registered name.
type Named interface {
	Name() string
}

// Logged is implemented by factories that accept the processor's logger. It
// is called before Initialize.
type Logged interface {
	SetLogger(logger hclog.Logger)
}
