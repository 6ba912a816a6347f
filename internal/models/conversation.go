package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation subjects
const (
	ConversationSubjectEscrow      = "escrow"
	ConversationSubjectSaleRequest = "sale_request"
)

// Conversation is a negotiation thread between the two parties of an
// escrow or a sale request.
type Conversation struct {
	ID          uuid.UUID `db:"id" json:"id"`
	SubjectType string    `db:"subject_type" json:"subject_type"`
	SubjectID   uuid.UUID `db:"subject_id" json:"subject_id"`
	BuyerID     uuid.UUID `db:"buyer_id" json:"buyer_id"`
	SellerID    uuid.UUID `db:"seller_id" json:"seller_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Participant reports whether a user is one of the two parties.
func (c *Conversation) Participant(userID uuid.UUID) bool {
	return c.BuyerID == userID || c.SellerID == userID
}

// Counterparty returns the other party of the conversation.
func (c *Conversation) Counterparty(userID uuid.UUID) uuid.UUID {
	if c.BuyerID == userID {
		return c.SellerID
	}
	return c.BuyerID
}

// Message is a single chat message.
type Message struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ConversationID uuid.UUID `db:"conversation_id" json:"conversation_id"`
	SenderID       uuid.UUID `db:"sender_id" json:"sender_id"`
	Body           string    `db:"body" json:"body"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
