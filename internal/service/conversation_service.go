package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
	"github.com/LuisNMHN/netmarkethn-backend/internal/validation"
)

// ConversationRepository describes the storage dependencies of
// ConversationService.
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, subjectType string, subjectID, buyerID, sellerID uuid.UUID) (*models.Conversation, error)
	GetByID(ctx context.Context, conversationID uuid.UUID) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, error)
	AddMessage(ctx context.Context, conversationID, senderID uuid.UUID, body string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]models.Message, error)
}

// SubjectResolver checks that a chat subject exists and returns its two
// parties. Escrows and sale requests both satisfy this through small
// adapters in the router wiring.
type SubjectResolver interface {
	ResolveSubject(ctx context.Context, subjectType string, subjectID uuid.UUID) (buyerID, sellerID uuid.UUID, err error)
}

// ConversationService runs the per-deal negotiation chat.
type ConversationService struct {
	repo     ConversationRepository
	resolver SubjectResolver
	notifier Notifier
	pusher   Pusher
}

func NewConversationService(repo ConversationRepository, resolver SubjectResolver, notifier Notifier, pusher Pusher) *ConversationService {
	return &ConversationService{
		repo:     repo,
		resolver: resolver,
		notifier: notifier,
		pusher:   pusher,
	}
}

// Open returns the conversation for a deal, creating it on first use.
// Only the two parties of the subject may open it.
func (s *ConversationService) Open(ctx context.Context, callerID uuid.UUID, subjectType string, subjectID uuid.UUID) (*models.Conversation, error) {
	if subjectType != models.ConversationSubjectEscrow && subjectType != models.ConversationSubjectSaleRequest {
		return nil, apperror.New(apperror.ErrCodeValidation, "unknown conversation subject")
	}

	buyerID, sellerID, err := s.resolver.ResolveSubject(ctx, subjectType, subjectID)
	if err != nil {
		return nil, err
	}
	if callerID != buyerID && callerID != sellerID {
		return nil, apperror.ErrForbidden
	}

	conversation, err := s.repo.GetOrCreate(ctx, subjectType, subjectID, buyerID, sellerID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to open conversation")
	}
	return conversation, nil
}

// ListMine returns the caller's conversations.
func (s *ConversationService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, error) {
	limit = normalizeLimit(limit)
	conversations, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list conversations")
	}
	return conversations, nil
}

// Send appends a message and pushes it to the counterparty.
func (s *ConversationService) Send(ctx context.Context, callerID, conversationID uuid.UUID, body string) (*models.Message, error) {
	if err := validation.ValidateMessageContent(body); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	conversation, err := s.getParticipating(ctx, callerID, conversationID)
	if err != nil {
		return nil, err
	}

	message, err := s.repo.AddMessage(ctx, conversationID, callerID, body)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to send message")
	}

	counterparty := conversation.Counterparty(callerID)
	if s.pusher != nil {
		// Live delivery; the unread-notification below covers offline users.
		_ = s.pusher.PushToUser(counterparty, "chat_message", message)
	}
	if s.notifier != nil {
		key := "chat_message:" + message.ID.String()
		s.notifier.Notify(ctx, counterparty, models.NotificationTopicChat, "chat_message",
			"New message", truncate(body, 120), models.NotificationPriorityLow, &key)
	}

	return message, nil
}

// Messages returns a page of the conversation's history.
func (s *ConversationService) Messages(ctx context.Context, callerID, conversationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	if _, err := s.getParticipating(ctx, callerID, conversationID); err != nil {
		return nil, err
	}

	limit = normalizeLimit(limit)
	messages, err := s.repo.ListMessages(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list messages")
	}
	return messages, nil
}

func (s *ConversationService) getParticipating(ctx context.Context, callerID, conversationID uuid.UUID) (*models.Conversation, error) {
	conversation, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "conversation not found")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load conversation")
	}
	if !conversation.Participant(callerID) {
		return nil, apperror.ErrForbidden
	}
	return conversation, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
