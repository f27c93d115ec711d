package outbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
)

// Name is the registered name of the outbox backend.
const Name = "outbox"

func init() {
	backend.Register(Name, func() (backend.ProcessorFactory, error) {
		return NewFactory(), nil
	})
}

// Config configures the outbox database, read from "outbox."-prefixed
// properties.
type Config struct {
	// Dialect is "sqlite" (default) or "postgres".
	Dialect string `mapstructure:"dialect"`

	// DSN is the data source name passed to the driver.
	DSN string `mapstructure:"dsn"`

	// AutoMigrate creates the outbox table on Initialize.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// Factory persists sealed batches to an outbox table.
type Factory struct {
	cfg    Config
	db     *gorm.DB
	owned  bool
	logger hclog.Logger
}

// NewFactory returns an uninitialized Factory that opens its own database.
func NewFactory() *Factory {
	return &Factory{logger: hclog.NewNullLogger()}
}

// NewFactoryWithDB returns a Factory writing to an existing database. The
// database is not closed by Close.
func NewFactoryWithDB(db *gorm.DB) *Factory {
	return &Factory{db: db, logger: hclog.NewNullLogger()}
}

// Name returns the backend name.
func (f *Factory) Name() string {
	return Name
}

// SetLogger implements backend.Logged.
func (f *Factory) SetLogger(logger hclog.Logger) {
	f.logger = logger.Named("outbox-backend")
}

// Initialize implements backend.ProcessorFactory.
func (f *Factory) Initialize(props backend.Properties, _ any) error {
	f.cfg = Config{Dialect: "sqlite", AutoMigrate: true}
	if err := props.Decode(Name, &f.cfg); err != nil {
		return err
	}

	if f.db == nil {
		dialector, err := f.dialector()
		if err != nil {
			return err
		}
		db, err := gorm.Open(dialector, &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to %s database: %w", f.cfg.Dialect, err)
		}
		f.db = db
		f.owned = true
	}

	if f.cfg.AutoMigrate {
		if err := f.db.AutoMigrate(&Entry{}); err != nil {
			return fmt.Errorf("failed to migrate outbox table: %w", err)
		}
	}

	f.logger.Info("initialized outbox backend", "dialect", f.cfg.Dialect)
	return nil
}

func (f *Factory) dialector() (gorm.Dialector, error) {
	if f.cfg.DSN == "" {
		return nil, fmt.Errorf("outbox dsn is required")
	}

	switch strings.ToLower(f.cfg.Dialect) {
	case "sqlite":
		return sqlite.Open(f.cfg.DSN), nil
	case "postgres":
		return postgres.Open(f.cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported outbox dialect: %s (supported: sqlite, postgres)", f.cfg.Dialect)
	}
}

// GetProcessor implements backend.ProcessorFactory. All operations of the
// batch are inserted in one transaction under a new batch ID.
func (f *Factory) GetProcessor(ops []backend.Operation) backend.Processor {
	return func(ctx context.Context) error {
		if len(ops) == 0 {
			return nil
		}

		batchID := uuid.New()
		entries := make([]Entry, len(ops))
		for i, op := range ops {
			entries[i] = NewEntry(batchID, i, op)
		}

		err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(&entries).Error
		})
		if err != nil {
			return fmt.Errorf("failed to write outbox batch: %w", err)
		}

		f.logger.Debug("wrote outbox batch", "batch", batchID, "operations", len(entries))
		return nil
	}
}

// Pending returns up to limit pending entries in insertion order.
func (f *Factory) Pending(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	err := f.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending outbox entries: %w", err)
	}
	return entries, nil
}

// MarkPublished marks the entries with ids as published.
func (f *Factory) MarkPublished(ctx context.Context, ids ...uint) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	err := f.db.WithContext(ctx).
		Model(&Entry{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"status": StatusPublished, "published_at": &now}).Error
	if err != nil {
		return fmt.Errorf("failed to mark outbox entries published: %w", err)
	}
	return nil
}

// Close closes the database when the factory opened it.
func (f *Factory) Close() error {
	if f.db == nil || !f.owned {
		return nil
	}
	sqlDB, err := f.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
