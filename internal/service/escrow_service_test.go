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

type mockEscrowRepo struct {
	mock.Mock
}

func (m *mockEscrowRepo) Create(ctx context.Context, payerID, payeeID uuid.UUID, amount int64, escrowType string, expiresAt time.Time) (*models.Escrow, error) {
	args := m.Called(ctx, payerID, payeeID, amount, escrowType, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) Lock(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, escrowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) Release(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, escrowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) Cancel(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, escrowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) Dispute(ctx context.Context, escrowID uuid.UUID, reason string) (*models.Escrow, error) {
	args := m.Called(ctx, escrowID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) ResolveDispute(ctx context.Context, escrowID uuid.UUID, releaseToPayee bool) (*models.Escrow, error) {
	args := m.Called(ctx, escrowID, releaseToPayee)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) GetByID(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, escrowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Escrow, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func activeEscrow(payerID, payeeID uuid.UUID, status string) *models.Escrow {
	return &models.Escrow{
		ID:         uuid.New(),
		PayerID:    payerID,
		PayeeID:    payeeID,
		Amount:     10000,
		Status:     status,
		EscrowType: models.EscrowTypeP2P,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

func TestEscrowService_Create_Success(t *testing.T) {
	repo := new(mockEscrowRepo)
	notifier := &mockNotifier{}
	svc := NewEscrowService(repo, notifier, 72*time.Hour)
	ctx := context.Background()
	payerID := uuid.New()
	payeeID := uuid.New()

	expected := activeEscrow(payerID, payeeID, models.EscrowStatusPending)
	repo.On("Create", ctx, payerID, payeeID, int64(10000), models.EscrowTypeP2P, mock.AnythingOfType("time.Time")).Return(expected, nil)

	escrow, err := svc.Create(ctx, payerID, payeeID, 10000, models.EscrowTypeP2P)
	assert.NoError(t, err)
	assert.Equal(t, expected, escrow)

	notified := notifier.callsFor(payeeID)
	assert.Len(t, notified, 1)
	assert.Equal(t, "escrow_created", notified[0].Event)
}

func TestEscrowService_Create_Validation(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo, nil, 72*time.Hour)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Create(ctx, userID, uuid.New(), 0, models.EscrowTypeP2P)
	assert.Equal(t, apperror.ErrCodeInvalidAmount, apperror.Code(err))

	_, err = svc.Create(ctx, userID, userID, 100, models.EscrowTypeP2P)
	assert.Equal(t, apperror.ErrCodeSelfReference, apperror.Code(err))

	_, err = svc.Create(ctx, userID, uuid.New(), 100, "barter")
	assert.Equal(t, apperror.ErrCodeValidation, apperror.Code(err))

	repo.AssertNotCalled(t, "Create")
}

func TestEscrowService_Lock_OnlyPayer(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo, nil, 72*time.Hour)
	ctx := context.Background()
	payerID := uuid.New()
	payeeID := uuid.New()

	escrow := activeEscrow(payerID, payeeID, models.EscrowStatusPending)
	repo.On("GetByID", ctx, escrow.ID).Return(escrow, nil)

	_, err := svc.Lock(ctx, payeeID, escrow.ID)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.Code(err))
	repo.AssertNotCalled(t, "Lock")
}

func TestEscrowService_Release_NotLocked(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo, nil, 72*time.Hour)
	ctx := context.Background()
	payerID := uuid.New()

	escrow := activeEscrow(payerID, uuid.New(), models.EscrowStatusPending)
	repo.On("GetByID", ctx, escrow.ID).Return(escrow, nil)

	_, err := svc.Release(ctx, payerID, escrow.ID)
	assert.Equal(t, apperror.ErrCodeInvalidState, apperror.Code(err))
	repo.AssertNotCalled(t, "Release")
}

func TestEscrowService_Release_Success(t *testing.T) {
	repo := new(mockEscrowRepo)
	notifier := &mockNotifier{}
	svc := NewEscrowService(repo, notifier, 72*time.Hour)
	ctx := context.Background()
	payerID := uuid.New()
	payeeID := uuid.New()

	locked := activeEscrow(payerID, payeeID, models.EscrowStatusLocked)
	released := *locked
	released.Status = models.EscrowStatusReleased

	repo.On("GetByID", ctx, locked.ID).Return(locked, nil)
	repo.On("Release", ctx, locked.ID).Return(&released, nil)

	escrow, err := svc.Release(ctx, payerID, locked.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, escrow.Status)

	notified := notifier.callsFor(payeeID)
	assert.Len(t, notified, 1)
	assert.Equal(t, "escrow_released", notified[0].Event)
}

func TestEscrowService_Cancel_PayeeOnlyWhilePending(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo, nil, 72*time.Hour)
	ctx := context.Background()
	payerID := uuid.New()
	payeeID := uuid.New()

	locked := activeEscrow(payerID, payeeID, models.EscrowStatusLocked)
	repo.On("GetByID", ctx, locked.ID).Return(locked, nil)

	_, err := svc.Cancel(ctx, payeeID, locked.ID)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.Code(err))
	repo.AssertNotCalled(t, "Cancel")
}

func TestEscrowService_Cancel_ByPayerWhileLocked(t *testing.T) {
	repo := new(mockEscrowRepo)
	notifier := &mockNotifier{}
	svc := NewEscrowService(repo, notifier, 72*time.Hour)
	ctx := context.Background()
	payerID := uuid.New()
	payeeID := uuid.New()

	locked := activeEscrow(payerID, payeeID, models.EscrowStatusLocked)
	cancelled := *locked
	cancelled.Status = models.EscrowStatusCancelled

	repo.On("GetByID", ctx, locked.ID).Return(locked, nil)
	repo.On("Cancel", ctx, locked.ID).Return(&cancelled, nil)

	escrow, err := svc.Cancel(ctx, payerID, locked.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusCancelled, escrow.Status)
	assert.Len(t, notifier.callsFor(payeeID), 1)
}

func TestEscrowService_Dispute_ThirdPartyForbidden(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo, nil, 72*time.Hour)
	ctx := context.Background()

	locked := activeEscrow(uuid.New(), uuid.New(), models.EscrowStatusLocked)
	repo.On("GetByID", ctx, locked.ID).Return(locked, nil)

	_, err := svc.Dispute(ctx, uuid.New(), locked.ID, "payment never arrived")
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.Code(err))
	repo.AssertNotCalled(t, "Dispute")
}

func TestEscrowService_ResolveDispute_NotifiesBothParties(t *testing.T) {
	repo := new(mockEscrowRepo)
	notifier := &mockNotifier{}
	svc := NewEscrowService(repo, notifier, 72*time.Hour)
	ctx := context.Background()
	payerID := uuid.New()
	payeeID := uuid.New()

	resolved := activeEscrow(payerID, payeeID, models.EscrowStatusReleased)
	repo.On("ResolveDispute", ctx, resolved.ID, true).Return(resolved, nil)

	_, err := svc.ResolveDispute(ctx, resolved.ID, true)
	assert.NoError(t, err)
	assert.Len(t, notifier.callsFor(payerID), 1)
	assert.Len(t, notifier.callsFor(payeeID), 1)
}

func TestEscrowService_GetByID_LazyExpiry(t *testing.T) {
	repo := new(mockEscrowRepo)
	notifier := &mockNotifier{}
	svc := NewEscrowService(repo, notifier, 72*time.Hour)
	ctx := context.Background()
	payerID := uuid.New()
	payeeID := uuid.New()

	stale := activeEscrow(payerID, payeeID, models.EscrowStatusPending)
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	expired := *stale
	expired.Status = models.EscrowStatusCancelled

	repo.On("GetByID", ctx, stale.ID).Return(stale, nil)
	repo.On("Cancel", ctx, stale.ID).Return(&expired, nil)

	escrow, err := svc.GetByID(ctx, payerID, stale.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusCancelled, escrow.Status)
	assert.Contains(t, notifier.events(), "escrow_expired")
}

func TestEscrowService_GetByID_NotFound(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo, nil, 72*time.Hour)
	ctx := context.Background()
	escrowID := uuid.New()

	repo.On("GetByID", ctx, escrowID).Return(nil, repository.ErrEscrowNotFound)

	_, err := svc.GetByID(ctx, uuid.New(), escrowID)
	assert.Equal(t, apperror.ErrCodeNotFound, apperror.Code(err))
}
