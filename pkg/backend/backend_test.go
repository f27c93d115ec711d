package backend

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFactory struct{}

func (stubFactory) Initialize(Properties, any) error   { return nil }
func (stubFactory) GetProcessor([]Operation) Processor { return nil }

func TestRegistry_LookupIsCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register("Stub", func() (ProcessorFactory, error) { return stubFactory{}, nil })

	_, ok := r.Lookup("stub")
	assert.True(t, ok)
	_, ok = r.Lookup("STUB")
	assert.True(t, ok)
	assert.Equal(t, []string{"stub"}, r.Names())
}

func TestRegistry_NewUnknownBackend(t *testing.T) {
	r := NewRegistry()

	f, err := r.New("NonexistentType")
	require.Error(t, err)
	assert.Nil(t, f)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "NonexistentType", cfgErr.Backend)
	assert.ErrorIs(t, err, ErrBackendNotFound)
	assert.Contains(t, err.Error(), "NonexistentType")
}

func TestRegistry_NewConstructorFailure(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	r.Register("broken", func() (ProcessorFactory, error) { return nil, boom })

	_, err := r.New("broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	r.Register("nil", func() (ProcessorFactory, error) { return nil, nil })
	_, err = r.New("nil")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil factory")
}

func TestProperties_Decode(t *testing.T) {
	props := Properties{
		PropBackend:      "stub",
		"stub.path":      "/tmp/index",
		"stub.brokers":   "a:9092,b:9092",
		"stub.delay":     "150ms",
		"stub.max_batch": "25",
		"stub.enabled":   "true",
		"other.path":     "/nope",
	}

	var cfg struct {
		Path     string        `mapstructure:"path"`
		Brokers  []string      `mapstructure:"brokers"`
		Delay    time.Duration `mapstructure:"delay"`
		MaxBatch int           `mapstructure:"max_batch"`
		Enabled  bool          `mapstructure:"enabled"`
	}
	require.NoError(t, props.Decode("stub", &cfg))

	assert.Equal(t, "/tmp/index", cfg.Path)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Brokers)
	assert.Equal(t, 150*time.Millisecond, cfg.Delay)
	assert.Equal(t, 25, cfg.MaxBatch)
	assert.True(t, cfg.Enabled)
}

func TestProperties_GetOnNil(t *testing.T) {
	var props Properties
	assert.Equal(t, "", props.Get(PropExecution))
	assert.Empty(t, props.Prefixed("bleve"))
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "add docs/1", AddOperation("docs", "doc", "1", nil).String())
	assert.Equal(t, "delete docs/1", DeleteOperation("docs", "doc", "1").String())
	assert.Equal(t, "purge_all docs", PurgeAllOperation("docs", "doc").String())
}

func TestOperation_JSON(t *testing.T) {
	data, err := json.Marshal(PurgeAllOperation("docs", "doc"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"purge_all","index":"docs","entityType":"doc"}`, string(data))

	var op Operation
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"Delete","index":"docs","id":"7"}`), &op))
	assert.Equal(t, DeleteOperation("docs", "", "7"), op)

	_, err = json.Marshal(Operation{Kind: OpKind(42)})
	assert.Error(t, err)
}
