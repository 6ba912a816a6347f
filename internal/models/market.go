package models

import (
	"time"

	"github.com/google/uuid"
)

// Market statuses
const (
	MarketStatusOpen     = "open"
	MarketStatusResolved = "resolved"
	MarketStatusVoided   = "voided"
)

// Market outcomes
const (
	MarketOutcomeYes = "yes"
	MarketOutcomeNo  = "no"
)

// Market is a binary prediction market funded from the HNLD ledger.
// Stakes accumulate in per-outcome pools; resolution pays the winning
// side pro-rata from the combined pool.
type Market struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Question        string     `db:"question" json:"question"`
	OutcomeYes      string     `db:"outcome_yes" json:"outcome_yes"`
	OutcomeNo       string     `db:"outcome_no" json:"outcome_no"`
	Status          string     `db:"status" json:"status"`
	PoolYes         int64      `db:"pool_yes" json:"pool_yes"`
	PoolNo          int64      `db:"pool_no" json:"pool_no"`
	ClosesAt        time.Time  `db:"closes_at" json:"closes_at"`
	ResolvedOutcome *string    `db:"resolved_outcome" json:"resolved_outcome,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// MarketPosition is a user's stake on one outcome.
type MarketPosition struct {
	ID        uuid.UUID `db:"id" json:"id"`
	MarketID  uuid.UUID `db:"market_id" json:"market_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Outcome   string    `db:"outcome" json:"outcome"`
	Stake     int64     `db:"stake" json:"stake"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
