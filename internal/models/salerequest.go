package models

import (
	"time"

	"github.com/google/uuid"
)

// Sale request statuses
const (
	SaleRequestStatusOpen      = "open"
	SaleRequestStatusMatched   = "matched"
	SaleRequestStatusCompleted = "completed"
	SaleRequestStatusCancelled = "cancelled"
)

// SaleRequest is an offer to sell HNLD for lempiras. Amount is HNLD
// centavos, PriceLPS is lempira centavos asked for the whole lot.
// Accepting a request locks the amount in an escrow whose payer is the
// seller.
type SaleRequest struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	SellerID  uuid.UUID  `db:"seller_id" json:"seller_id"`
	BuyerID   *uuid.UUID `db:"buyer_id" json:"buyer_id,omitempty"`
	Amount    int64      `db:"amount" json:"amount"`
	PriceLPS  int64      `db:"price_lps" json:"price_lps"`
	Status    string     `db:"status" json:"status"`
	EscrowID  *uuid.UUID `db:"escrow_id" json:"escrow_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
