package work

import (
	"github.com/google/uuid"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
)

// Queue is an ordered collection of pending Work owned by a single unit of
// work, for example one transaction. Once prepared it also holds the sealed
// list of backend operations produced from its items.
//
// A Queue is not safe for concurrent use.
type Queue struct {
	id     uuid.UUID
	items  []*Work
	sealed []backend.Operation
	isSeal bool
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{id: uuid.New()}
}

// ID identifies the queue in logs.
func (q *Queue) ID() uuid.UUID {
	return q.id
}

// Add appends w to the queue. A nil w is ignored.
func (q *Queue) Add(w *Work) {
	if w == nil {
		return
	}
	q.items = append(q.items, w)
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Items returns the pending items. The returned slice must not be modified.
func (q *Queue) Items() []*Work {
	return q.items
}

// Split moves the first n pending items into a new queue and returns it. The
// remaining items stay in q. n is clamped to the queue length.
func (q *Queue) Split(n int) *Queue {
	if n > len(q.items) {
		n = len(q.items)
	}
	if n < 0 {
		n = 0
	}

	sub := NewQueue()
	sub.items = make([]*Work, n)
	copy(sub.items, q.items[:n])

	rest := make([]*Work, len(q.items)-n)
	copy(rest, q.items[n:])
	q.items = rest

	return sub
}

// Clear discards all pending items.
func (q *Queue) Clear() {
	q.items = nil
}

// Take removes and returns the items in the first n positions for which keep
// returns true, preserving their order. Items that are not taken stay in the
// queue in their original order, ahead of anything beyond position n.
func (q *Queue) Take(n int, keep func(*Work) bool) []*Work {
	if n > len(q.items) {
		n = len(q.items)
	}

	var taken []*Work
	rest := make([]*Work, 0, len(q.items))
	for i, w := range q.items {
		if i < n && keep(w) {
			taken = append(taken, w)
			continue
		}
		rest = append(rest, w)
	}
	q.items = rest

	return taken
}

// Seal stores the converted operations for the queue.
func (q *Queue) Seal(ops []backend.Operation) {
	q.sealed = ops
	q.isSeal = true
}

// Sealed returns the converted operations and whether the queue was sealed.
func (q *Queue) Sealed() ([]backend.Operation, bool) {
	return q.sealed, q.isSeal
}
