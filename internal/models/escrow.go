package models

import (
	"time"

	"github.com/google/uuid"
)

// Escrow statuses. Transitions are one-directional:
// pending -> locked -> released, pending/locked -> cancelled,
// locked -> disputed (terminal pending admin resolution).
const (
	EscrowStatusPending   = "pending"
	EscrowStatusLocked    = "locked"
	EscrowStatusReleased  = "released"
	EscrowStatusCancelled = "cancelled"
	EscrowStatusDisputed  = "disputed"
)

// Escrow types
const (
	EscrowTypeP2P  = "p2p"
	EscrowTypeSale = "sale"
)

// Escrow holds a negotiated amount on behalf of a payer. While locked,
// the amount sits in the payer's reserved balance.
type Escrow struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PayerID       uuid.UUID  `db:"payer_id" json:"payer_id"`
	PayeeID       uuid.UUID  `db:"payee_id" json:"payee_id"`
	Amount        int64      `db:"amount" json:"amount"`
	Status        string     `db:"status" json:"status"`
	EscrowType    string     `db:"escrow_type" json:"escrow_type"`
	ExpiresAt     time.Time  `db:"expires_at" json:"expires_at"`
	LockedAt      *time.Time `db:"locked_at" json:"locked_at,omitempty"`
	ReleasedAt    *time.Time `db:"released_at" json:"released_at,omitempty"`
	CancelledAt   *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	DisputeReason *string    `db:"dispute_reason" json:"dispute_reason,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the escrow has outlived its expiry while still
// holding (or about to hold) funds.
func (e *Escrow) Expired(now time.Time) bool {
	return (e.Status == EscrowStatusPending || e.Status == EscrowStatusLocked) &&
		now.After(e.ExpiresAt)
}
