package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gpuforge/gpuforge-backend/pkg/enums"
)

// OutboxEvent rows are written inside the same transaction as the state
// change they describe and delivered asynchronously by the notifications
// dispatcher.
type OutboxEvent struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType    enums.OutboxEventType `gorm:"column:event_type;not null"`
	AggregateID  uuid.UUID             `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload      []byte                `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount int                   `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string               `gorm:"column:last_error"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	PublishedAt  *time.Time            `gorm:"column:published_at"`
}

func (e *OutboxEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
