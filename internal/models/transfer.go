package models

import (
	"time"

	"github.com/google/uuid"
)

// Direct transfer statuses
const (
	TransferStatusPending   = "pending"
	TransferStatusCompleted = "completed"
	TransferStatusCancelled = "cancelled"
	TransferStatusExpired   = "expired"
)

// DirectTransfer moves HNLD from one user to another through an
// out-of-band confirmation code. The amount is reserved on the sender
// until the transfer completes, is cancelled, or expires.
type DirectTransfer struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	FromUserID  uuid.UUID  `db:"from_user_id" json:"from_user_id"`
	ToUserID    *uuid.UUID `db:"to_user_id" json:"to_user_id,omitempty"`
	Amount      int64      `db:"amount" json:"amount"`
	Status      string     `db:"status" json:"status"`
	UniqueCode  string     `db:"unique_code" json:"unique_code"`
	ExpiresAt   time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
