package outbox

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
)

// Entry status constants.
const (
	StatusPending   = "pending"
	StatusPublished = "published"
)

// Entry stores one index operation of a sealed batch. A relay reads pending
// entries in ID order and applies them to the search index.
type Entry struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Batch identification
	BatchID uuid.UUID `gorm:"type:uuid;not null;index:idx_index_outbox_batch" json:"batchId"`
	Seq     int       `gorm:"not null" json:"seq"`

	// Operation
	Kind       string         `gorm:"type:varchar(20);not null" json:"kind"`
	IndexName  string         `gorm:"type:varchar(255);not null" json:"indexName"`
	EntityType string         `gorm:"type:varchar(255)" json:"entityType"`
	EntityID   string         `gorm:"type:varchar(500)" json:"entityId"`
	Payload    map[string]any `gorm:"serializer:json;type:jsonb" json:"payload,omitempty"`

	// Outbox state
	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_index_outbox_status" json:"status"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name.
func (Entry) TableName() string {
	return "index_operation_outbox"
}

// BeforeCreate hook to ensure required fields.
func (e *Entry) BeforeCreate(tx *gorm.DB) error {
	if e.BatchID == uuid.Nil {
		return fmt.Errorf("batch_id is required")
	}
	if e.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if e.IndexName == "" {
		return fmt.Errorf("index_name is required")
	}

	if e.Status == "" {
		e.Status = StatusPending
	}

	return nil
}

// NewEntry creates an outbox entry for op at position seq of a batch.
func NewEntry(batchID uuid.UUID, seq int, op backend.Operation) Entry {
	index := op.Index
	if index == "" {
		index = op.EntityType
	}
	return Entry{
		BatchID:    batchID,
		Seq:        seq,
		Kind:       op.Kind.String(),
		IndexName:  index,
		EntityType: op.EntityType,
		EntityID:   op.ID,
		Payload:    op.Document,
		Status:     StatusPending,
	}
}

// Operation converts the entry back to the operation it was created from.
func (e Entry) Operation() (backend.Operation, error) {
	var kind backend.OpKind
	if err := kind.UnmarshalText([]byte(e.Kind)); err != nil {
		return backend.Operation{}, err
	}
	return backend.Operation{
		Kind:       kind,
		Index:      e.IndexName,
		EntityType: e.EntityType,
		ID:         e.EntityID,
		Document:   e.Payload,
	}, nil
}
