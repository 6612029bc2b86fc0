package entity

import (
	"time"

	"gorm.io/datatypes"
)

// OutboxEvent is a domain event written in the same transaction as the state
// change it describes and relayed to the message bus afterwards.
type OutboxEvent struct {
	ID             string         `json:"id" gorm:"primaryKey;size:36"`
	EventType      string         `json:"event_type" gorm:"size:64;not null"`
	AggregateID    string         `json:"aggregate_id" gorm:"size:32;not null;index"`
	PartitionKey   string         `json:"partition_key" gorm:"size:64;not null"`
	Payload        datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	OccurredAt     time.Time      `json:"occurred_at" gorm:"not null;index"`
	PublishedAt    *time.Time     `json:"published_at" gorm:"index"`
	RetryCount     int            `json:"retry_count" gorm:"not null;default:0"`
	LastError      *string        `json:"last_error" gorm:"type:text"`
	LastErrorAt    *time.Time     `json:"last_error_at"`
	ClaimToken     *string        `json:"-" gorm:"size:36;index"`
	ClaimUntil     *time.Time     `json:"-"`
	DeadLetteredAt *time.Time     `json:"dead_lettered_at"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}
