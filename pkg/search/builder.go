package search

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/iancoleman/strcase"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/work"
)

// ExtractFunc turns an entity into the fields of its index document.
type ExtractFunc func(entity any) (map[string]any, error)

// DocumentBuilder is the default Builder. It maps each work kind onto add and
// delete operations against a single index.
type DocumentBuilder struct {
	// Index is the name of the target index.
	Index string

	// EntityType is recorded on every operation produced.
	EntityType string

	// Extract builds the document for add operations. Defaults to
	// ExtractFields.
	Extract ExtractFunc
}

// NewDocumentBuilder returns a DocumentBuilder using ExtractFields.
func NewDocumentBuilder(index, entityType string) *DocumentBuilder {
	return &DocumentBuilder{
		Index:      index,
		EntityType: entityType,
		Extract:    ExtractFields,
	}
}

// AddToWorkQueue implements Builder.
//
// Update and Index become a delete followed by an add. Collection work is
// dropped when ops already holds an operation for the same document, since
// the owner has then been handled by its own work item; otherwise it is
// treated as an update.
func (b *DocumentBuilder) AddToWorkQueue(entity any, id string, kind work.Kind, ops []backend.Operation, _ *Factory) ([]backend.Operation, error) {
	switch kind {
	case work.Add:
		return b.add(entity, id, ops)

	case work.Delete, work.Purge:
		return append(ops, backend.DeleteOperation(b.Index, b.EntityType, id)), nil

	case work.PurgeAll:
		return append(ops, backend.PurgeAllOperation(b.Index, b.EntityType)), nil

	case work.Update, work.Index:
		ops = append(ops, backend.DeleteOperation(b.Index, b.EntityType, id))
		return b.add(entity, id, ops)

	case work.Collection:
		if b.covered(id, ops) {
			return ops, nil
		}
		ops = append(ops, backend.DeleteOperation(b.Index, b.EntityType, id))
		return b.add(entity, id, ops)

	default:
		return ops, &Error{Op: kind.String(), Msg: b.EntityType + "/" + id, Err: ErrUnsupportedKind}
	}
}

func (b *DocumentBuilder) add(entity any, id string, ops []backend.Operation) ([]backend.Operation, error) {
	if entity == nil {
		return ops, &Error{Op: "add", Msg: b.EntityType + "/" + id, Err: ErrNilEntity}
	}

	extract := b.Extract
	if extract == nil {
		extract = ExtractFields
	}

	doc, err := extract(entity)
	if err != nil {
		return ops, &Error{Op: "add", Msg: b.EntityType + "/" + id, Err: err}
	}

	return append(ops, backend.AddOperation(b.Index, b.EntityType, id, doc)), nil
}

// covered reports whether ops already affects the document id in this index.
func (b *DocumentBuilder) covered(id string, ops []backend.Operation) bool {
	for _, op := range ops {
		if op.Index != b.Index {
			continue
		}
		if op.Kind == backend.OpPurgeAll || op.ID == id {
			return true
		}
	}
	return false
}

// ExtractFields builds a document from a map or a struct. Map keys are
// copied as-is. Exported struct fields are named by their `index` tag, or by
// the snake_case field name; `index:"-"` skips a field. Embedded structs are
// flattened.
func ExtractFields(entity any) (map[string]any, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, ErrNilEntity
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key type %s", ErrUnsupportedEntity, v.Type().Key())
		}
		doc := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			doc[iter.Key().String()] = iter.Value().Interface()
		}
		return doc, nil

	case reflect.Struct:
		doc := make(map[string]any)
		extractStruct(v, doc)
		return doc, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEntity, v.Type())
	}
}

var timeType = reflect.TypeOf(time.Time{})

func extractStruct(v reflect.Value, doc map[string]any) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("index")
		if tag == "-" {
			continue
		}

		fv := v.Field(i)
		if field.Anonymous && tag == "" && fv.Kind() == reflect.Struct && field.Type != timeType {
			extractStruct(fv, doc)
			continue
		}

		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = strcase.ToSnake(field.Name)
		}
		doc[name] = fv.Interface()
	}
}
