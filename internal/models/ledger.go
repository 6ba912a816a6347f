package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types
const (
	TransactionTypeDeposit       = "deposit"
	TransactionTypeWithdrawal    = "withdrawal"
	TransactionTypeTransferIn    = "transfer_in"
	TransactionTypeTransferOut   = "transfer_out"
	TransactionTypeFee           = "fee"
	TransactionTypeEscrowHold    = "escrow_hold"
	TransactionTypeEscrowRelease = "escrow_release"
	TransactionTypeEscrowRefund  = "escrow_refund"
	TransactionTypeMarketStake   = "market_stake"
	TransactionTypeMarketPayout  = "market_payout"
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusCancelled = "cancelled"
)

// Balance is a user's HNLD position. All amounts are int64 centavos
// (1 HNLD = 100 centavos); floats never touch the ledger.
// Invariant: Available == Balance - Reserved, and all three are >= 0.
type Balance struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	Reserved  int64     `db:"reserved" json:"reserved_balance"`
	Available int64     `db:"available" json:"available_balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is one journal entry of the HNLD ledger. Immutable once
// completed.
type Transaction struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Type        string     `db:"type" json:"type"`
	Amount      int64      `db:"amount" json:"amount"`
	Status      string     `db:"status" json:"status"`
	FromUserID  *uuid.UUID `db:"from_user_id" json:"from_user_id,omitempty"`
	ToUserID    *uuid.UUID `db:"to_user_id" json:"to_user_id,omitempty"`
	Reference   *string    `db:"reference" json:"reference,omitempty"`
	Description *string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
