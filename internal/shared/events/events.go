// Package events relays outbox rows written by the domain services to a message bus.
package events

import (
	"context"
	"time"
)

// Record is one claimed outbox row.
type Record struct {
	ID           string
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	OccurredAt   time.Time
}

// Store is the outbox table as seen by the relay.
type Store interface {
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]Record, error)
	MarkPublished(ctx context.Context, id, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, id, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, id, claimToken, errMsg string, at time.Time) error
}

// Publisher delivers one event to the bus.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
	Close() error
}
