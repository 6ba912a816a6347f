package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification statuses
const (
	NotificationStatusUnread   = "unread"
	NotificationStatusRead     = "read"
	NotificationStatusArchived = "archived"
)

// Notification priorities
const (
	NotificationPriorityLow    = "low"
	NotificationPriorityNormal = "normal"
	NotificationPriorityHigh   = "high"
)

// Notification topics
const (
	NotificationTopicLedger   = "ledger"
	NotificationTopicEscrow   = "escrow"
	NotificationTopicTransfer = "transfer"
	NotificationTopicKYC      = "kyc"
	NotificationTopicMarket   = "market"
	NotificationTopicChat     = "chat"
	NotificationTopicSystem   = "system"
)

// Notification is a persisted per-user event. DedupeKey is unique per
// user among non-expired rows, which makes emission idempotent.
type Notification struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	Topic     string     `db:"topic" json:"topic"`
	Event     string     `db:"event" json:"event"`
	Title     string     `db:"title" json:"title"`
	Body      string     `db:"body" json:"body"`
	Priority  string     `db:"priority" json:"priority"`
	DedupeKey *string    `db:"dedupe_key" json:"dedupe_key,omitempty"`
	Status    string     `db:"status" json:"status"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
