package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/indexqueue"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/search"
)

// Environment variables overriding the configuration file.
const (
	EnvBackend   = "INDEXQUEUE_BACKEND"
	EnvExecution = "INDEXQUEUE_EXECUTION"
)

// Config contains the indexqueue configuration.
type Config struct {
	// LogLevel is the level of the logger. Defaults to "info".
	LogLevel string `hcl:"log_level,optional"`

	// Worker configures batching and execution.
	Worker *Worker `hcl:"worker,block"`

	// Bleve configures the built-in backend.
	Bleve *Bleve `hcl:"bleve,block"`

	// Algolia configures the Algolia backend.
	Algolia *Algolia `hcl:"algolia,block"`

	// Kafka configures the Kafka/Redpanda backend.
	Kafka *Kafka `hcl:"kafka,block"`

	// Outbox configures the outbox backend.
	Outbox *Outbox `hcl:"outbox,block"`

	// Recorder configures the recording backend.
	Recorder *Recorder `hcl:"recorder,block"`

	// Entities are the indexed entity types.
	Entities []Entity `hcl:"entity,block"`
}

// Worker configures the queueing processor.
type Worker struct {
	// Execution is "async" or "sync". Any other value, including none, is
	// "sync".
	Execution string `hcl:"execution,optional"`

	// Backend names the backend. Defaults to "bleve".
	Backend string `hcl:"backend,optional"`

	// BatchSize flushes a queue once it holds this many items. Zero disables.
	BatchSize int `hcl:"batch_size,optional"`

	// Workers is the number of async workers.
	Workers int `hcl:"workers,optional"`

	// QueueDepth is the number of async batches that may wait for a worker.
	QueueDepth int `hcl:"queue_depth,optional"`

	// OrderedLayers converts collection work after all other work.
	OrderedLayers bool `hcl:"ordered_layers,optional"`
}

// Bleve configures the built-in backend.
type Bleve struct {
	IndexPath string `hcl:"index_path,optional"`
}

// Algolia configures the Algolia backend.
type Algolia struct {
	AppID       string `hcl:"app_id,optional"`
	APIKey      string `hcl:"api_key,optional"`
	IndexPrefix string `hcl:"index_prefix,optional"`
	Wait        bool   `hcl:"wait,optional"`
}

// Kafka configures the Kafka/Redpanda backend.
type Kafka struct {
	Brokers []string `hcl:"brokers,optional"`
	Topic   string   `hcl:"topic,optional"`
}

// Outbox configures the outbox backend.
type Outbox struct {
	Dialect string `hcl:"dialect,optional"`
	DSN     string `hcl:"dsn,optional"`
}

// Recorder configures the recording backend.
type Recorder struct {
	Delay string `hcl:"delay,optional"`
	Fail  string `hcl:"fail,optional"`
}

// Entity is an indexed entity type.
type Entity struct {
	// Name is the entity type name used by work items.
	Name string `hcl:"name,label"`

	// Index is the target index. Defaults to Name.
	Index string `hcl:"index,optional"`
}

// Default returns the configuration used without a configuration file.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadFile loads, completes and validates the configuration from an HCL file.
func LoadFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration file path is required")
	}

	// Check if file exists
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	var c Config
	if err := hclsimple.DecodeFile(filename, nil, &c); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}
	return c.finish()
}

// Parse is like LoadFile for HCL source. filename is used in diagnostics and
// must end in ".hcl".
func Parse(filename string, src []byte) (*Config, error) {
	var c Config
	if err := hclsimple.Decode(filename, src, nil, &c); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return c.finish()
}

func (c *Config) finish() (*Config, error) {
	c.applyEnv()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if c.Worker == nil {
		c.Worker = &Worker{}
	}
	if v := os.Getenv(EnvBackend); v != "" {
		c.Worker.Backend = v
	}
	if v := os.Getenv(EnvExecution); v != "" {
		c.Worker.Execution = v
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Worker == nil {
		c.Worker = &Worker{}
	}
	// Anything but "async" runs synchronously.
	c.Worker.Execution = strings.ToLower(c.Worker.Execution)
	if c.Worker.Execution != "async" {
		c.Worker.Execution = "sync"
	}
	c.Worker.Backend = strings.ToLower(c.Worker.Backend)
	if c.Worker.Backend == "" {
		c.Worker.Backend = backend.DefaultBackend
	}
	for i := range c.Entities {
		if c.Entities[i].Index == "" {
			c.Entities[i].Index = c.Entities[i].Name
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("trace", "debug", "info", "warn", "error")),
		validation.Field(&c.Worker, validation.Required),
	); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	w := c.Worker
	if err := validation.ValidateStruct(w,
		validation.Field(&w.BatchSize, validation.Min(0)),
		validation.Field(&w.Workers, validation.Min(0)),
		validation.Field(&w.QueueDepth, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("worker validation error: %w", err)
	}

	switch w.Backend {
	case "algolia":
		if c.Algolia == nil {
			return fmt.Errorf("algolia configuration is missing")
		}
		if err := validation.ValidateStruct(c.Algolia,
			validation.Field(&c.Algolia.AppID, validation.Required),
			validation.Field(&c.Algolia.APIKey, validation.Required),
		); err != nil {
			return fmt.Errorf("algolia validation error: %w", err)
		}
	case "outbox":
		if c.Outbox == nil {
			return fmt.Errorf("outbox configuration is missing")
		}
		if err := validation.ValidateStruct(c.Outbox,
			validation.Field(&c.Outbox.Dialect, validation.In("sqlite", "postgres")),
			validation.Field(&c.Outbox.DSN, validation.Required),
		); err != nil {
			return fmt.Errorf("outbox validation error: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.Entities))
	for _, e := range c.Entities {
		if err := validation.Validate(e.Name, validation.Required); err != nil {
			return fmt.Errorf("entity name: %w", err)
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate entity %q", e.Name)
		}
		seen[e.Name] = true
	}

	return nil
}

// Properties converts the configuration to processor properties.
func (c *Config) Properties() backend.Properties {
	props := backend.Properties{}
	set := func(key, value string) {
		if value != "" {
			props[key] = value
		}
	}

	if c.Worker != nil {
		set(backend.PropExecution, c.Worker.Execution)
		set(backend.PropBackend, c.Worker.Backend)
	}
	if c.Bleve != nil {
		set("bleve.index_path", c.Bleve.IndexPath)
	}
	if c.Algolia != nil {
		set("algolia.app_id", c.Algolia.AppID)
		set("algolia.api_key", c.Algolia.APIKey)
		set("algolia.index_prefix", c.Algolia.IndexPrefix)
		set("algolia.wait", strconv.FormatBool(c.Algolia.Wait))
	}
	if c.Kafka != nil {
		set("kafka.brokers", strings.Join(c.Kafka.Brokers, ","))
		set("kafka.topic", c.Kafka.Topic)
	}
	if c.Outbox != nil {
		set("outbox.dialect", c.Outbox.Dialect)
		set("outbox.dsn", c.Outbox.DSN)
	}
	if c.Recorder != nil {
		set("recorder.delay", c.Recorder.Delay)
		set("recorder.fail", c.Recorder.Fail)
	}

	return props
}

// Options returns the processor options for the worker configuration.
func (c *Config) Options() []indexqueue.Option {
	if c.Worker == nil {
		return nil
	}

	opts := []indexqueue.Option{
		indexqueue.WithBatchSize(c.Worker.BatchSize),
	}
	if c.Worker.Workers > 0 {
		opts = append(opts, indexqueue.WithWorkers(c.Worker.Workers))
	}
	if c.Worker.QueueDepth > 0 {
		opts = append(opts, indexqueue.WithQueueDepth(c.Worker.QueueDepth))
	}
	if c.Worker.OrderedLayers {
		opts = append(opts, indexqueue.WithOrderedLayers())
	}
	return opts
}

// SearchFactory returns a search factory with a document builder registered
// for every configured entity.
func (c *Config) SearchFactory() *search.Factory {
	f := search.NewFactory()
	for _, e := range c.Entities {
		f.Register(e.Name, search.NewDocumentBuilder(e.Index, e.Name))
	}
	return f
}
