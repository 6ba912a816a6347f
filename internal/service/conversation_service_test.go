package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
)

type mockConversationRepo struct {
	mock.Mock
}

func (m *mockConversationRepo) GetOrCreate(ctx context.Context, subjectType string, subjectID, buyerID, sellerID uuid.UUID) (*models.Conversation, error) {
	args := m.Called(ctx, subjectType, subjectID, buyerID, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *mockConversationRepo) GetByID(ctx context.Context, conversationID uuid.UUID) (*models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *mockConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *mockConversationRepo) AddMessage(ctx context.Context, conversationID, senderID uuid.UUID, body string) (*models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *mockConversationRepo) ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	return args.Get(0).([]models.Message), args.Error(1)
}

// fakeResolver returns a fixed pair of parties.
type fakeResolver struct {
	buyerID  uuid.UUID
	sellerID uuid.UUID
	err      error
}

func (r *fakeResolver) ResolveSubject(_ context.Context, _ string, _ uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	if r.err != nil {
		return uuid.Nil, uuid.Nil, r.err
	}
	return r.buyerID, r.sellerID, nil
}

func dealConversation(buyerID, sellerID uuid.UUID) *models.Conversation {
	return &models.Conversation{
		ID:          uuid.New(),
		SubjectType: models.ConversationSubjectEscrow,
		SubjectID:   uuid.New(),
		BuyerID:     buyerID,
		SellerID:    sellerID,
		CreatedAt:   time.Now(),
	}
}

func TestConversationService_Open_Success(t *testing.T) {
	repo := new(mockConversationRepo)
	buyerID := uuid.New()
	sellerID := uuid.New()
	resolver := &fakeResolver{buyerID: buyerID, sellerID: sellerID}
	svc := NewConversationService(repo, resolver, nil, nil)
	ctx := context.Background()
	subjectID := uuid.New()

	expected := dealConversation(buyerID, sellerID)
	repo.On("GetOrCreate", ctx, models.ConversationSubjectEscrow, subjectID, buyerID, sellerID).Return(expected, nil)

	conversation, err := svc.Open(ctx, buyerID, models.ConversationSubjectEscrow, subjectID)
	assert.NoError(t, err)
	assert.Equal(t, expected, conversation)
}

func TestConversationService_Open_OutsiderForbidden(t *testing.T) {
	repo := new(mockConversationRepo)
	resolver := &fakeResolver{buyerID: uuid.New(), sellerID: uuid.New()}
	svc := NewConversationService(repo, resolver, nil, nil)

	_, err := svc.Open(context.Background(), uuid.New(), models.ConversationSubjectEscrow, uuid.New())
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.Code(err))
	repo.AssertNotCalled(t, "GetOrCreate")
}

func TestConversationService_Open_UnknownSubject(t *testing.T) {
	svc := NewConversationService(nil, nil, nil, nil)

	_, err := svc.Open(context.Background(), uuid.New(), "order", uuid.New())
	assert.Equal(t, apperror.ErrCodeValidation, apperror.Code(err))
}

func TestConversationService_Send_NotifiesCounterparty(t *testing.T) {
	repo := new(mockConversationRepo)
	notifier := &mockNotifier{}
	pusher := &fakePusher{}
	svc := NewConversationService(repo, nil, notifier, pusher)
	ctx := context.Background()
	buyerID := uuid.New()
	sellerID := uuid.New()

	conversation := dealConversation(buyerID, sellerID)
	message := &models.Message{ID: uuid.New(), ConversationID: conversation.ID, SenderID: buyerID, Body: "hola"}

	repo.On("GetByID", ctx, conversation.ID).Return(conversation, nil)
	repo.On("AddMessage", ctx, conversation.ID, buyerID, "hola").Return(message, nil)

	got, err := svc.Send(ctx, buyerID, conversation.ID, "hola")
	assert.NoError(t, err)
	assert.Equal(t, message, got)
	assert.Equal(t, 1, pusher.count())

	calls := notifier.callsFor(sellerID)
	assert.Len(t, calls, 1)
	assert.Equal(t, models.NotificationPriorityLow, calls[0].Priority)
}

func TestConversationService_Send_LongBodyTruncatedInNotification(t *testing.T) {
	repo := new(mockConversationRepo)
	notifier := &mockNotifier{}
	svc := NewConversationService(repo, nil, notifier, nil)
	ctx := context.Background()
	buyerID := uuid.New()
	sellerID := uuid.New()

	conversation := dealConversation(buyerID, sellerID)
	body := strings.Repeat("a", 400)
	message := &models.Message{ID: uuid.New(), ConversationID: conversation.ID, SenderID: buyerID, Body: body}

	repo.On("GetByID", ctx, conversation.ID).Return(conversation, nil)
	repo.On("AddMessage", ctx, conversation.ID, buyerID, body).Return(message, nil)

	_, err := svc.Send(ctx, buyerID, conversation.ID, body)
	assert.NoError(t, err)

	calls := notifier.callsFor(sellerID)
	assert.Len(t, calls, 1)
	assert.Equal(t, 123, len(calls[0].Body))
}

func TestConversationService_Send_OutsiderForbidden(t *testing.T) {
	repo := new(mockConversationRepo)
	svc := NewConversationService(repo, nil, nil, nil)
	ctx := context.Background()

	conversation := dealConversation(uuid.New(), uuid.New())
	repo.On("GetByID", ctx, conversation.ID).Return(conversation, nil)

	_, err := svc.Send(ctx, uuid.New(), conversation.ID, "hola")
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.Code(err))
	repo.AssertNotCalled(t, "AddMessage")
}

func TestConversationService_Messages_OutsiderForbidden(t *testing.T) {
	repo := new(mockConversationRepo)
	svc := NewConversationService(repo, nil, nil, nil)
	ctx := context.Background()

	conversation := dealConversation(uuid.New(), uuid.New())
	repo.On("GetByID", ctx, conversation.ID).Return(conversation, nil)

	_, err := svc.Messages(ctx, uuid.New(), conversation.ID, 50, 0)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.Code(err))
}
