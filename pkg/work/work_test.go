package work

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
)

type project struct{ Name string }

func TestKind_ParseRoundTrip(t *testing.T) {
	for k := Add; k <= Index; k++ {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	k, err := ParseKind(" Collection ")
	require.NoError(t, err)
	assert.Equal(t, Collection, k)

	_, err = ParseKind("rename")
	require.Error(t, err)
	assert.Equal(t, "kind(42)", Kind(42).String())
}

func TestWork_Type(t *testing.T) {
	assert.Equal(t, "document", New("document", "1", Add, nil).Type())
	assert.Equal(t, "work.project", New("", "1", Add, &project{}).Type())
	assert.Equal(t, "work.project", New("", "1", Add, project{}).Type())
	assert.Equal(t, "", New("", "1", Delete, nil).Type())
	assert.Equal(t, "update document/9", New("document", "9", Update, nil).String())
}

func fill(q *Queue, n int) {
	for i := 0; i < n; i++ {
		q.Add(New("document", string(rune('a'+i)), Add, nil))
	}
}

func TestQueue_Split(t *testing.T) {
	q := NewQueue()
	fill(q, 5)

	sub := q.Split(3)
	require.Equal(t, 3, sub.Len())
	require.Equal(t, 2, q.Len())
	assert.Equal(t, "a", sub.Items()[0].ID)
	assert.Equal(t, "c", sub.Items()[2].ID)
	assert.Equal(t, "d", q.Items()[0].ID)
	assert.NotEqual(t, q.ID(), sub.ID())

	// Appending to one queue must not leak into the other.
	sub.Add(New("document", "z", Add, nil))
	assert.Equal(t, "d", q.Items()[0].ID)
	assert.Equal(t, 2, q.Len())

	all := q.Split(10)
	assert.Equal(t, 2, all.Len())
	assert.Equal(t, 0, q.Len())

	none := q.Split(-1)
	assert.Equal(t, 0, none.Len())
}

func TestQueue_Take(t *testing.T) {
	q := NewQueue()
	q.Add(New("document", "1", Add, nil))
	q.Add(New("document", "2", Collection, nil))
	q.Add(New("document", "3", Delete, nil))
	q.Add(New("document", "4", Add, nil))

	notCollection := func(w *Work) bool { return w.Kind != Collection }

	taken := q.Take(3, notCollection)
	require.Len(t, taken, 2)
	assert.Equal(t, "1", taken[0].ID)
	assert.Equal(t, "3", taken[1].ID)

	// Untaken items stay in order ahead of items beyond the snapshot.
	require.Equal(t, 2, q.Len())
	assert.Equal(t, "2", q.Items()[0].ID)
	assert.Equal(t, "4", q.Items()[1].ID)

	taken = q.Take(10, func(*Work) bool { return true })
	assert.Len(t, taken, 2)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_AddIgnoresNil(t *testing.T) {
	q := NewQueue()
	q.Add(nil)
	q.Add(New("document", "1", Add, nil))
	q.Add(nil)

	require.Equal(t, 1, q.Len())
	assert.Equal(t, "1", q.Items()[0].ID)

	taken := q.Take(q.Len(), func(w *Work) bool { return w.Kind == Add })
	assert.Len(t, taken, 1)
}

func TestQueue_ClearAndSeal(t *testing.T) {
	q := NewQueue()
	fill(q, 3)
	q.Clear()
	assert.Equal(t, 0, q.Len())

	_, sealed := q.Sealed()
	assert.False(t, sealed)

	q.Seal([]backend.Operation{backend.DeleteOperation("docs", "document", "1")})
	ops, sealed := q.Sealed()
	assert.True(t, sealed)
	assert.Len(t, ops, 1)

	// An empty batch is still sealed.
	empty := NewQueue()
	empty.Seal(nil)
	_, sealed = empty.Sealed()
	assert.True(t, sealed)
}
