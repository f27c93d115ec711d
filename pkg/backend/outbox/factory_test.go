package outbox

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
)

func newTestFactory(t *testing.T) *Factory {
	t.Helper()

	f := NewFactory()
	require.NoError(t, f.Initialize(backend.Properties{
		"outbox.dialect": "sqlite",
		"outbox.dsn":     filepath.Join(t.TempDir(), "outbox.db"),
	}, nil))
	t.Cleanup(func() { _ = f.Close() })

	return f
}

func TestGetProcessor_WritesBatch(t *testing.T) {
	f := newTestFactory(t)
	ctx := context.Background()

	ops := []backend.Operation{
		backend.DeleteOperation("docs", "document", "1"),
		backend.AddOperation("docs", "document", "1", map[string]any{"title": "one"}),
		backend.PurgeAllOperation("drafts", "draft"),
	}
	require.NoError(t, f.GetProcessor(ops)(ctx))
	require.NoError(t, f.GetProcessor(ops[:1])(ctx))

	entries, err := f.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	first := entries[0].BatchID
	for i, e := range entries[:3] {
		assert.Equal(t, first, e.BatchID)
		assert.Equal(t, i, e.Seq)
		assert.Equal(t, StatusPending, e.Status)

		op, err := e.Operation()
		require.NoError(t, err)
		assert.Equal(t, ops[i], op)
	}
	assert.NotEqual(t, first, entries[3].BatchID)
	assert.Equal(t, 0, entries[3].Seq)
}

func TestGetProcessor_EmptyBatch(t *testing.T) {
	f := newTestFactory(t)
	ctx := context.Background()

	require.NoError(t, f.GetProcessor(nil)(ctx))

	entries, err := f.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGetProcessor_RollsBackInvalidBatch(t *testing.T) {
	f := newTestFactory(t)
	ctx := context.Background()

	err := f.GetProcessor([]backend.Operation{
		backend.AddOperation("docs", "document", "1", nil),
		{Kind: backend.OpDelete, ID: "2"},
	})(ctx)
	require.Error(t, err)

	entries, err := f.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMarkPublished(t *testing.T) {
	f := newTestFactory(t)
	ctx := context.Background()

	require.NoError(t, f.GetProcessor([]backend.Operation{
		backend.AddOperation("docs", "document", "1", nil),
		backend.AddOperation("docs", "document", "2", nil),
	})(ctx))

	entries, err := f.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NoError(t, f.MarkPublished(ctx, entries[0].ID))

	entries, err = f.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2", entries[0].EntityID)
}

func TestNewFactoryWithDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	f := NewFactoryWithDB(db)
	require.NoError(t, f.Initialize(nil, nil))
	require.NoError(t, f.GetProcessor([]backend.Operation{
		backend.AddOperation("docs", "document", "1", nil),
	})(context.Background()))

	var count int64
	require.NoError(t, db.Model(&Entry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// The caller owns db.
	require.NoError(t, f.Close())
	require.NoError(t, db.Exec("SELECT 1").Error)
}

func TestInitialize_Errors(t *testing.T) {
	tests := []struct {
		name  string
		props backend.Properties
	}{
		{"missing dsn", backend.Properties{"outbox.dialect": "sqlite"}},
		{"unknown dialect", backend.Properties{"outbox.dialect": "oracle", "outbox.dsn": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, NewFactory().Initialize(tt.props, nil))
		})
	}
}

func TestEntry_BeforeCreate(t *testing.T) {
	e := NewEntry(uuid.Nil, 0, backend.AddOperation("docs", "document", "1", nil))
	assert.Error(t, e.BeforeCreate(nil))

	e = NewEntry(uuid.New(), 0, backend.Operation{Kind: backend.OpAdd, EntityType: "draft", ID: "1"})
	e.Status = ""
	require.NoError(t, e.BeforeCreate(nil))
	assert.Equal(t, "draft", e.IndexName)
	assert.Equal(t, StatusPending, e.Status)
}
