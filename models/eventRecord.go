package models

import (
	"time"

	"github.com/zedibooks/ledger_backend/config"
)

// EventRecord is the transactional outbox row for a committed primary-event
// transition. It is inserted in the same transaction as the primary write and
// delivered at-least-once by the direct processor and/or the Pub/Sub
// dispatcher. Handlers are idempotent, so redelivery is safe.
type EventRecord struct {
	ID            int                `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	UserId        string             `gorm:"size:64;not null;index" json:"user_id"`
	EventDateTime time.Time          `gorm:"index;not null" json:"event_date_time"`
	ReferenceId   string             `gorm:"size:64;not null;index" json:"reference_id"`
	ReferenceType EventReferenceType `gorm:"type:enum('SL','SR','EX','AS','SA');not null" json:"reference_type"`
	Action        EventAction        `gorm:"type:enum('C','U','D');not null" json:"action"`
	OldObj        []byte             `gorm:"type:blob" json:"old_obj"`
	NewObj        []byte             `gorm:"type:blob" json:"new_obj"`
	IsProcessed   bool               `gorm:"index;not null" json:"is_processed"`

	// Publish metadata (publishing happens after commit via the dispatcher).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`

	// Processing metadata (consumer/worker side). A record whose attempts
	// exhaust MaxAttempts moves to ProcessStatus DEAD and is never re-claimed.
	ProcessStatus    string     `gorm:"size:20;index;not null;default:'PENDING'" json:"process_status"`
	ProcessAttempts  int        `gorm:"not null;default:0" json:"process_attempts"`
	LastProcessError *string    `gorm:"type:text" json:"last_process_error"`
	ProcessedAt      *time.Time `gorm:"index" json:"processed_at"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToEventMessage(record EventRecord) config.EventMessage {
	return config.EventMessage{
		ID:            record.ID,
		UserId:        record.UserId,
		EventDateTime: record.EventDateTime,
		ReferenceId:   record.ReferenceId,
		ReferenceType: string(record.ReferenceType),
		Action:        string(record.Action),
		OldObj:        record.OldObj,
		NewObj:        record.NewObj,
		CorrelationId: record.CorrelationId,
	}
}
