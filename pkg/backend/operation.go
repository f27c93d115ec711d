package backend

import (
	"fmt"
	"strings"
)

// OpKind is the kind of index mutation an Operation performs.
type OpKind int

const (
	// OpAdd adds (or replaces) a document.
	OpAdd OpKind = iota
	// OpDelete removes a document by ID.
	OpDelete
	// OpPurgeAll removes every document from an index.
	OpPurgeAll
)

func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpDelete:
		return "delete"
	case OpPurgeAll:
		return "purge_all"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k OpKind) MarshalText() ([]byte, error) {
	switch k {
	case OpAdd, OpDelete, OpPurgeAll:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("invalid operation kind %d", int(k))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *OpKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "add":
		*k = OpAdd
	case "delete":
		*k = OpDelete
	case "purge_all":
		*k = OpPurgeAll
	default:
		return fmt.Errorf("unknown operation kind %q", text)
	}
	return nil
}

// Operation is a backend-ready index mutation produced from a work item.
// Operations are immutable once produced; backends must not modify them.
type Operation struct {
	Kind OpKind `json:"kind"`

	// Index is the name of the target index.
	Index string `json:"index"`

	// EntityType is the type of the entity the operation was built from.
	EntityType string `json:"entityType"`

	// ID is the document ID. Empty for OpPurgeAll.
	ID string `json:"id,omitempty"`

	// Document holds the indexed fields for OpAdd.
	Document map[string]any `json:"document,omitempty"`
}

// AddOperation returns an OpAdd operation.
func AddOperation(index, entityType, id string, doc map[string]any) Operation {
	return Operation{Kind: OpAdd, Index: index, EntityType: entityType, ID: id, Document: doc}
}

// DeleteOperation returns an OpDelete operation.
func DeleteOperation(index, entityType, id string) Operation {
	return Operation{Kind: OpDelete, Index: index, EntityType: entityType, ID: id}
}

// PurgeAllOperation returns an OpPurgeAll operation.
func PurgeAllOperation(index, entityType string) Operation {
	return Operation{Kind: OpPurgeAll, Index: index, EntityType: entityType}
}

func (o Operation) String() string {
	if o.Kind == OpPurgeAll {
		return fmt.Sprintf("%s %s", o.Kind, o.Index)
	}
	return fmt.Sprintf("%s %s/%s", o.Kind, o.Index, o.ID)
}
