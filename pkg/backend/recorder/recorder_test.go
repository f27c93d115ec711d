package recorder_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend/recorder"
)

func TestRecorder_RecordsBatches(t *testing.T) {
	f := recorder.New()
	require.NoError(t, f.Initialize(nil, "shared"))

	ops := []backend.Operation{
		backend.AddOperation("documents", "document", "1", nil),
		backend.DeleteOperation("documents", "document", "2"),
	}
	require.NoError(t, f.GetProcessor(ops)(context.Background()))

	batches := f.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, ops, batches[0].Operations)
	assert.NoError(t, batches[0].Err)
	assert.Equal(t, ops, f.Operations())
	assert.Equal(t, 1, f.Initialized())
	assert.Equal(t, "shared", f.Shared())

	f.Reset()
	assert.Empty(t, f.Batches())
}

func TestRecorder_FailureFromProperties(t *testing.T) {
	f := recorder.New()
	require.NoError(t, f.Initialize(backend.Properties{
		"recorder.fail": "index unavailable",
	}, nil))

	err := f.GetProcessor(nil)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index unavailable")

	batches := f.Batches()
	require.Len(t, batches, 1)
	assert.Error(t, batches[0].Err)

	f.SetFailure("")
	assert.NoError(t, f.GetProcessor(nil)(context.Background()))
}

func TestRecorder_DelayHonorsContext(t *testing.T) {
	f := recorder.New()
	require.NoError(t, f.Initialize(backend.Properties{"recorder.delay": "1h"}, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.GetProcessor(nil)(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecorder_Registered(t *testing.T) {
	f, err := backend.DefaultRegistry.New(recorder.Name)
	require.NoError(t, err)
	assert.IsType(t, &recorder.Factory{}, f)
}
