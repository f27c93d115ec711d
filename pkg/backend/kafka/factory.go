package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
)

const (
	// Name is the registered name of the Kafka backend.
	Name = "kafka"

	// BatchHeader is the record header carrying the batch ID.
	BatchHeader = "batch"

	defaultBroker = "localhost:19092"
	defaultTopic  = "indexqueue.operations"
)

func init() {
	backend.Register(Name, func() (backend.ProcessorFactory, error) {
		return NewFactory(), nil
	})
}

// Config configures the producer, read from "kafka."-prefixed properties.
type Config struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Message is the value of every produced record.
type Message struct {
	BatchID   string            `json:"batch_id"`
	Seq       int               `json:"seq"`
	Size      int               `json:"size"`
	Operation backend.Operation `json:"operation"`
}

// producer is the subset of *kgo.Client used by the backend.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Factory ships sealed batches to a Redpanda/Kafka topic, one record per
// operation.
type Factory struct {
	cfg    Config
	client producer
	logger hclog.Logger
}

// NewFactory returns an uninitialized Factory.
func NewFactory() *Factory {
	return &Factory{logger: hclog.NewNullLogger()}
}

// Name returns the backend name.
func (f *Factory) Name() string {
	return Name
}

// SetLogger implements backend.Logged.
func (f *Factory) SetLogger(logger hclog.Logger) {
	f.logger = logger.Named("kafka-backend")
}

// Initialize implements backend.ProcessorFactory.
func (f *Factory) Initialize(props backend.Properties, _ any) error {
	if err := props.Decode(Name, &f.cfg); err != nil {
		return err
	}

	// Try environment variable first, then the default.
	if len(f.cfg.Brokers) == 0 {
		if brokers := os.Getenv("REDPANDA_BROKERS"); brokers != "" {
			f.cfg.Brokers = strings.Split(brokers, ",")
		} else {
			f.cfg.Brokers = []string{defaultBroker}
		}
	}
	if f.cfg.Topic == "" {
		f.cfg.Topic = defaultTopic
	}

	if f.client == nil {
		client, err := kgo.NewClient(
			kgo.SeedBrokers(f.cfg.Brokers...),

			// Wait for all in-sync replicas to acknowledge.
			kgo.RequiredAcks(kgo.AllISRAcks()),
			kgo.ProducerBatchCompression(kgo.GzipCompression()),
			kgo.ProducerLinger(10*time.Millisecond),
		)
		if err != nil {
			return fmt.Errorf("failed to create kafka client: %w", err)
		}
		f.client = client
	}

	f.logger.Info("initialized kafka backend", "brokers", f.cfg.Brokers, "topic", f.cfg.Topic)
	return nil
}

// GetProcessor implements backend.ProcessorFactory. The unit returns once
// every record is acknowledged.
func (f *Factory) GetProcessor(ops []backend.Operation) backend.Processor {
	return func(ctx context.Context) error {
		if len(ops) == 0 {
			return nil
		}

		records, err := f.records(uuid.New(), ops)
		if err != nil {
			return err
		}

		if err := f.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
			return fmt.Errorf("failed to publish index batch: %w", err)
		}

		f.logger.Debug("published index batch", "records", len(records), "topic", f.cfg.Topic)
		return nil
	}
}

func (f *Factory) records(batchID uuid.UUID, ops []backend.Operation) ([]*kgo.Record, error) {
	records := make([]*kgo.Record, 0, len(ops))
	for i, op := range ops {
		value, err := json.Marshal(Message{
			BatchID:   batchID.String(),
			Seq:       i,
			Size:      len(ops),
			Operation: op,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal operation %s: %w", op, err)
		}

		records = append(records, &kgo.Record{
			Topic: f.cfg.Topic,
			Key:   []byte(partitionKey(op)),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: BatchHeader, Value: []byte(batchID.String())},
			},
		})
	}
	return records, nil
}

// partitionKey keeps every operation on one index, purge-alls included, in a
// single partition so consumers see them in batch order.
func partitionKey(op backend.Operation) string {
	if op.Index != "" {
		return op.Index
	}
	return op.EntityType
}

// Close closes the Kafka client.
func (f *Factory) Close() error {
	if f.client != nil {
		f.client.Close()
	}
	return nil
}
