package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
)

type mockTransferRepo struct {
	mock.Mock
}

func (m *mockTransferRepo) Create(ctx context.Context, fromID uuid.UUID, toID *uuid.UUID, amount int64, expiresAt time.Time) (*models.DirectTransfer, error) {
	args := m.Called(ctx, fromID, toID, amount, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DirectTransfer), args.Error(1)
}

func (m *mockTransferRepo) Confirm(ctx context.Context, code string, claimerID uuid.UUID) (*models.DirectTransfer, error) {
	args := m.Called(ctx, code, claimerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DirectTransfer), args.Error(1)
}

func (m *mockTransferRepo) Cancel(ctx context.Context, transferID uuid.UUID, asExpired bool) (*models.DirectTransfer, error) {
	args := m.Called(ctx, transferID, asExpired)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DirectTransfer), args.Error(1)
}

func (m *mockTransferRepo) GetByID(ctx context.Context, transferID uuid.UUID) (*models.DirectTransfer, error) {
	args := m.Called(ctx, transferID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DirectTransfer), args.Error(1)
}

func (m *mockTransferRepo) GetByCode(ctx context.Context, code string) (*models.DirectTransfer, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DirectTransfer), args.Error(1)
}

func (m *mockTransferRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.DirectTransfer, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.DirectTransfer), args.Error(1)
}

func (m *mockTransferRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func pendingTransfer(fromID uuid.UUID, toID *uuid.UUID) *models.DirectTransfer {
	return &models.DirectTransfer{
		ID:         uuid.New(),
		FromUserID: fromID,
		ToUserID:   toID,
		Amount:     2500,
		Status:     models.TransferStatusPending,
		UniqueCode: "A2B3C4D5",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

func TestTransferService_Create_OpenRecipient(t *testing.T) {
	repo := new(mockTransferRepo)
	notifier := &mockNotifier{}
	svc := NewTransferService(repo, notifier, 24*time.Hour)
	ctx := context.Background()
	fromID := uuid.New()

	expected := pendingTransfer(fromID, nil)
	repo.On("Create", ctx, fromID, (*uuid.UUID)(nil), int64(2500), mock.AnythingOfType("time.Time")).Return(expected, nil)

	transfer, err := svc.Create(ctx, fromID, nil, 2500)
	assert.NoError(t, err)
	assert.Equal(t, expected, transfer)
	// No designated recipient, nobody to notify yet.
	assert.Empty(t, notifier.events())
}

func TestTransferService_Create_DesignatedRecipientNotified(t *testing.T) {
	repo := new(mockTransferRepo)
	notifier := &mockNotifier{}
	svc := NewTransferService(repo, notifier, 24*time.Hour)
	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()

	expected := pendingTransfer(fromID, &toID)
	repo.On("Create", ctx, fromID, &toID, int64(2500), mock.AnythingOfType("time.Time")).Return(expected, nil)

	_, err := svc.Create(ctx, fromID, &toID, 2500)
	assert.NoError(t, err)

	notified := notifier.callsFor(toID)
	assert.Len(t, notified, 1)
	assert.Equal(t, "transfer_pending", notified[0].Event)
}

func TestTransferService_Create_SelfTransfer(t *testing.T) {
	repo := new(mockTransferRepo)
	svc := NewTransferService(repo, nil, 24*time.Hour)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Create(ctx, userID, &userID, 2500)
	assert.Equal(t, apperror.ErrCodeSelfReference, apperror.Code(err))
	repo.AssertNotCalled(t, "Create")
}

func TestTransferService_Create_InsufficientFunds(t *testing.T) {
	repo := new(mockTransferRepo)
	svc := NewTransferService(repo, nil, 24*time.Hour)
	ctx := context.Background()
	fromID := uuid.New()

	repo.On("Create", ctx, fromID, (*uuid.UUID)(nil), int64(2500), mock.AnythingOfType("time.Time")).Return(nil, repository.ErrInsufficientFunds)

	_, err := svc.Create(ctx, fromID, nil, 2500)
	assert.Equal(t, apperror.ErrCodeInsufficientFunds, apperror.Code(err))
}

func TestTransferService_Confirm_Success(t *testing.T) {
	repo := new(mockTransferRepo)
	notifier := &mockNotifier{}
	svc := NewTransferService(repo, notifier, 24*time.Hour)
	ctx := context.Background()
	fromID := uuid.New()
	claimerID := uuid.New()

	pending := pendingTransfer(fromID, nil)
	completed := *pending
	completed.Status = models.TransferStatusCompleted
	completed.ToUserID = &claimerID

	repo.On("GetByCode", ctx, pending.UniqueCode).Return(pending, nil)
	repo.On("Confirm", ctx, pending.UniqueCode, claimerID).Return(&completed, nil)

	transfer, err := svc.Confirm(ctx, claimerID, pending.UniqueCode)
	assert.NoError(t, err)
	assert.Equal(t, models.TransferStatusCompleted, transfer.Status)

	assert.Len(t, notifier.callsFor(fromID), 1)
	assert.Len(t, notifier.callsFor(claimerID), 1)
}

func TestTransferService_Confirm_SenderCannotClaim(t *testing.T) {
	repo := new(mockTransferRepo)
	svc := NewTransferService(repo, nil, 24*time.Hour)
	ctx := context.Background()
	fromID := uuid.New()

	pending := pendingTransfer(fromID, nil)
	repo.On("GetByCode", ctx, pending.UniqueCode).Return(pending, nil)

	_, err := svc.Confirm(ctx, fromID, pending.UniqueCode)
	assert.Equal(t, apperror.ErrCodeSelfReference, apperror.Code(err))
	repo.AssertNotCalled(t, "Confirm")
}

func TestTransferService_Confirm_DesignatedRecipientEnforced(t *testing.T) {
	repo := new(mockTransferRepo)
	svc := NewTransferService(repo, nil, 24*time.Hour)
	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()

	pending := pendingTransfer(fromID, &toID)
	repo.On("GetByCode", ctx, pending.UniqueCode).Return(pending, nil)

	_, err := svc.Confirm(ctx, uuid.New(), pending.UniqueCode)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.Code(err))
	repo.AssertNotCalled(t, "Confirm")
}

func TestTransferService_Confirm_UnknownCode(t *testing.T) {
	repo := new(mockTransferRepo)
	svc := NewTransferService(repo, nil, 24*time.Hour)
	ctx := context.Background()

	repo.On("GetByCode", ctx, "XXXXXXXX").Return(nil, repository.ErrTransferNotFound)

	_, err := svc.Confirm(ctx, uuid.New(), "XXXXXXXX")
	assert.Equal(t, apperror.ErrCodeNotFound, apperror.Code(err))
}

func TestTransferService_Confirm_NoLongerClaimable(t *testing.T) {
	repo := new(mockTransferRepo)
	svc := NewTransferService(repo, nil, 24*time.Hour)
	ctx := context.Background()
	claimerID := uuid.New()

	pending := pendingTransfer(uuid.New(), nil)
	repo.On("GetByCode", ctx, pending.UniqueCode).Return(pending, nil)
	repo.On("Confirm", ctx, pending.UniqueCode, claimerID).Return(nil, repository.ErrEscrowInvalidState)

	_, err := svc.Confirm(ctx, claimerID, pending.UniqueCode)
	assert.Equal(t, apperror.ErrCodeInvalidState, apperror.Code(err))
}

func TestTransferService_Cancel_OnlySender(t *testing.T) {
	repo := new(mockTransferRepo)
	svc := NewTransferService(repo, nil, 24*time.Hour)
	ctx := context.Background()

	pending := pendingTransfer(uuid.New(), nil)
	repo.On("GetByID", ctx, pending.ID).Return(pending, nil)

	_, err := svc.Cancel(ctx, uuid.New(), pending.ID)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.Code(err))
	repo.AssertNotCalled(t, "Cancel")
}

func TestTransferService_GetByID_HiddenFromStrangers(t *testing.T) {
	repo := new(mockTransferRepo)
	svc := NewTransferService(repo, nil, 24*time.Hour)
	ctx := context.Background()

	pending := pendingTransfer(uuid.New(), nil)
	repo.On("GetByID", ctx, pending.ID).Return(pending, nil)

	_, err := svc.GetByID(ctx, uuid.New(), pending.ID)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.Code(err))
}
