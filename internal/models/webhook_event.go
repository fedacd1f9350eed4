package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent records a processed provider event for idempotent replay.
// The unique event ID makes at-least-once webhook delivery safe: a replayed
// event hits the uniqueness constraint and is skipped before any mutation.
type WebhookEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EventID   string          `gorm:"type:text;not null;uniqueIndex"` // Provider event ID.
	Provider  PaymentProvider `gorm:"type:varchar(16);not null"`      // Payment vendor.
	EventType string          `gorm:"type:varchar(64);not null"`      // Provider event type.
	Payload   datatypes.JSON  `gorm:"type:jsonb"`                     // Raw event payload.

	ProcessedAt time.Time `gorm:"not null"`                // When the event was applied.
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
