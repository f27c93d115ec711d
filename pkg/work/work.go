package work

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind is the kind of mutation a Work item records.
type Kind int

const (
	// Add indexes a newly created entity.
	Add Kind = iota
	// Update reindexes an existing entity.
	Update
	// Delete removes an entity from the index.
	Delete
	// Collection records a change to a collection owned by the entity.
	Collection
	// Purge removes an entity from the index without it being deleted.
	Purge
	// PurgeAll removes every entity of a type from the index.
	PurgeAll
	// Index forces an entity to be (re)indexed.
	Index
)

var kindNames = map[Kind]string{
	Add:        "add",
	Update:     "update",
	Delete:     "delete",
	Collection: "collection",
	Purge:      "purge",
	PurgeAll:   "purge_all",
	Index:      "index",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind returns the Kind with the given name, ignoring case.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown work kind: %q", s)
}

// Work is a pending record of one entity mutation awaiting index conversion.
type Work struct {
	// Entity is the changed object. It may be nil for Delete, Purge and
	// PurgeAll work, in which case EntityType must be set.
	Entity any

	// EntityType names the registered builder responsible for the entity.
	EntityType string

	// ID identifies the entity within its type.
	ID string

	Kind Kind
}

// New returns a Work item for entity.
func New(entityType, id string, kind Kind, entity any) *Work {
	return &Work{
		Entity:     entity,
		EntityType: entityType,
		ID:         id,
		Kind:       kind,
	}
}

// Type returns the entity type used for builder lookup. When EntityType is
// empty the dynamic Go type of Entity is used, without pointer indirection.
func (w *Work) Type() string {
	if w.EntityType != "" {
		return w.EntityType
	}
	if w.Entity == nil {
		return ""
	}
	t := reflect.TypeOf(w.Entity)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}

func (w *Work) String() string {
	return fmt.Sprintf("%s %s/%s", w.Kind, w.Type(), w.ID)
}
