package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepository struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetOrCreate returns the conversation for a subject, creating it on
// first use. The unique (subject_type, subject_id) constraint keeps
// concurrent first messages from forking the thread.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, subjectType string, subjectID, buyerID, sellerID uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.GetContext(ctx, &conversation, `
		INSERT INTO conversations (subject_type, subject_id, buyer_id, seller_id)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, subjectType, subjectID, buyerID, sellerID)
	if err == nil {
		return &conversation, nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil, fmt.Errorf("conversation repository: create %w", err)
	}

	err = r.db.GetContext(ctx, &conversation, `
		SELECT * FROM conversations WHERE subject_type = $1 AND subject_id = $2
	`, subjectType, subjectID)
	if err != nil {
		return nil, fmt.Errorf("conversation repository: get existing %w", err)
	}
	return &conversation, nil
}

// GetByID returns a conversation.
func (r *ConversationRepository) GetByID(ctx context.Context, conversationID uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.GetContext(ctx, &conversation,
		`SELECT * FROM conversations WHERE id = $1`, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("conversation repository: get by id %w", err)
	}
	return &conversation, nil
}

// ListByUser returns conversations where the user is a party.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.SelectContext(ctx, &conversations, `
		SELECT * FROM conversations WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("conversation repository: list by user %w", err)
	}
	return conversations, nil
}

// AddMessage appends a message to a conversation.
func (r *ConversationRepository) AddMessage(ctx context.Context, conversationID, senderID uuid.UUID, body string) (*models.Message, error) {
	var message models.Message
	err := r.db.GetContext(ctx, &message, `
		INSERT INTO messages (conversation_id, sender_id, body)
		VALUES ($1, $2, $3)
		RETURNING *
	`, conversationID, senderID, body)
	if err != nil {
		return nil, fmt.Errorf("conversation repository: add message %w", err)
	}
	return &message, nil
}

// ListMessages returns messages in chronological order.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.SelectContext(ctx, &messages, `
		SELECT * FROM messages WHERE conversation_id = $1
		ORDER BY created_at LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("conversation repository: list messages %w", err)
	}
	return messages, nil
}
