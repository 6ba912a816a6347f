package models

import (
	"time"

	"github.com/google/uuid"
)

// KYC document types
const (
	KYCDocTypeIdentity = "identity"
	KYCDocTypeAddress  = "address_proof"
	KYCDocTypeSelfie   = "selfie"
)

// KYC document review statuses
const (
	KYCDocStatusPending  = "pending"
	KYCDocStatusApproved = "approved"
	KYCDocStatusRejected = "rejected"
)

// KYCDocument is an uploaded identity document awaiting review.
type KYCDocument struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	UserID     uuid.UUID  `db:"user_id" json:"user_id"`
	DocType    string     `db:"doc_type" json:"doc_type"`
	FilePath   string     `db:"file_path" json:"-"`
	Status     string     `db:"status" json:"status"`
	ReviewNote *string    `db:"review_note" json:"review_note,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ReviewedAt *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
}
