package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
)

type mockLedgerRepo struct {
	mock.Mock
}

func (m *mockLedgerRepo) GetBalance(ctx context.Context, userID uuid.UUID) (*models.Balance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Balance), args.Error(1)
}

func (m *mockLedgerRepo) Emit(ctx context.Context, userID uuid.UUID, amount int64, description string) (*models.Transaction, error) {
	args := m.Called(ctx, userID, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockLedgerRepo) Burn(ctx context.Context, userID uuid.UUID, amount int64, description string) (*models.Transaction, error) {
	args := m.Called(ctx, userID, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockLedgerRepo) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, description string, reference *string) (*models.Transaction, error) {
	args := m.Called(ctx, fromID, toID, amount, description, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockLedgerRepo) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func (m *mockLedgerRepo) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func TestLedgerService_GetBalance(t *testing.T) {
	repo := new(mockLedgerRepo)
	svc := NewLedgerService(repo, nil, nil)
	ctx := context.Background()
	userID := uuid.New()

	expected := &models.Balance{UserID: userID, Balance: 10000, Reserved: 4000, Available: 6000}
	repo.On("GetBalance", ctx, userID).Return(expected, nil)

	balance, err := svc.GetBalance(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, expected, balance)
	repo.AssertExpectations(t)
}

func TestLedgerService_Emit_Success(t *testing.T) {
	repo := new(mockLedgerRepo)
	notifier := &mockNotifier{}
	svc := NewLedgerService(repo, notifier, nil)
	ctx := context.Background()
	userID := uuid.New()

	expected := &models.Transaction{ID: uuid.New(), Type: models.TransactionTypeDeposit, Amount: 5000}
	repo.On("Emit", ctx, userID, int64(5000), "initial credit").Return(expected, nil)

	tx, err := svc.Emit(ctx, userID, 5000, "initial credit")
	assert.NoError(t, err)
	assert.Equal(t, expected, tx)
	assert.Equal(t, []string{"balance_credited"}, notifier.events())
}

func TestLedgerService_Emit_InvalidAmount(t *testing.T) {
	repo := new(mockLedgerRepo)
	svc := NewLedgerService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Emit(ctx, uuid.New(), 0, "")
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeInvalidAmount, apperror.Code(err))

	_, err = svc.Emit(ctx, uuid.New(), -100, "")
	assert.Error(t, err)
	repo.AssertNotCalled(t, "Emit")
}

func TestLedgerService_Burn_InsufficientFunds(t *testing.T) {
	repo := new(mockLedgerRepo)
	svc := NewLedgerService(repo, nil, nil)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("Burn", ctx, userID, int64(5000), "cashout").Return(nil, repository.ErrInsufficientFunds)

	_, err := svc.Burn(ctx, userID, 5000, "cashout")
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeInsufficientFunds, apperror.Code(err))
}

func TestLedgerService_Burn_AboveThresholdRequiresApprovedKYC(t *testing.T) {
	repo := new(mockLedgerRepo)
	users := new(mockUserLookup)
	svc := NewLedgerService(repo, nil, NewKYCGate(users, 500000))
	ctx := context.Background()
	userID := uuid.New()

	users.On("GetByID", ctx, userID).Return(&models.User{ID: userID, KYCStatus: models.KYCStatusPending}, nil)

	_, err := svc.Burn(ctx, userID, 600000, "cashout")
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.Code(err))
	repo.AssertNotCalled(t, "Burn")
}

func TestLedgerService_Burn_BelowThresholdSkipsKYCLookup(t *testing.T) {
	repo := new(mockLedgerRepo)
	users := new(mockUserLookup)
	svc := NewLedgerService(repo, nil, NewKYCGate(users, 500000))
	ctx := context.Background()
	userID := uuid.New()

	expected := &models.Transaction{ID: uuid.New(), Type: models.TransactionTypeWithdrawal, Amount: 1000}
	repo.On("Burn", ctx, userID, int64(1000), "cashout").Return(expected, nil)

	tx, err := svc.Burn(ctx, userID, 1000, "cashout")
	assert.NoError(t, err)
	assert.Equal(t, expected, tx)
	users.AssertNotCalled(t, "GetByID")
}

func TestLedgerService_Transfer_Success(t *testing.T) {
	repo := new(mockLedgerRepo)
	notifier := &mockNotifier{}
	svc := NewLedgerService(repo, notifier, nil)
	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()

	expected := &models.Transaction{ID: uuid.New(), Type: models.TransactionTypeTransferOut, Amount: 2500}
	repo.On("Transfer", ctx, fromID, toID, int64(2500), "lunch", (*string)(nil)).Return(expected, nil)

	tx, err := svc.Transfer(ctx, fromID, toID, 2500, "lunch", nil)
	assert.NoError(t, err)
	assert.Equal(t, expected, tx)

	received := notifier.callsFor(toID)
	assert.Len(t, received, 1)
	assert.Equal(t, "transfer_received", received[0].Event)
}

func TestLedgerService_Transfer_SelfReference(t *testing.T) {
	repo := new(mockLedgerRepo)
	svc := NewLedgerService(repo, nil, nil)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Transfer(ctx, userID, userID, 1000, "", nil)
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeSelfReference, apperror.Code(err))
	repo.AssertNotCalled(t, "Transfer")
}

func TestLedgerService_Transfer_DuplicateReference(t *testing.T) {
	repo := new(mockLedgerRepo)
	svc := NewLedgerService(repo, nil, nil)
	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()
	ref := "order-42"

	repo.On("Transfer", ctx, fromID, toID, int64(1000), "", &ref).Return(nil, repository.ErrDuplicateReference)

	_, err := svc.Transfer(ctx, fromID, toID, 1000, "", &ref)
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeConflict, apperror.Code(err))
}

func TestLedgerService_GetTransaction_Forbidden(t *testing.T) {
	repo := new(mockLedgerRepo)
	svc := NewLedgerService(repo, nil, nil)
	ctx := context.Background()
	owner := uuid.New()
	stranger := uuid.New()
	txID := uuid.New()

	tx := &models.Transaction{ID: txID, FromUserID: &owner, Amount: 100}
	repo.On("GetTransaction", ctx, txID).Return(tx, nil)

	_, err := svc.GetTransaction(ctx, stranger, txID)
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.Code(err))
}

func TestLedgerService_GetTransaction_AsRecipient(t *testing.T) {
	repo := new(mockLedgerRepo)
	svc := NewLedgerService(repo, nil, nil)
	ctx := context.Background()
	recipient := uuid.New()
	txID := uuid.New()

	tx := &models.Transaction{ID: txID, ToUserID: &recipient, Amount: 100}
	repo.On("GetTransaction", ctx, txID).Return(tx, nil)

	got, err := svc.GetTransaction(ctx, recipient, txID)
	assert.NoError(t, err)
	assert.Equal(t, tx, got)
}

func TestLedgerService_ListTransactions_NormalizesLimit(t *testing.T) {
	repo := new(mockLedgerRepo)
	svc := NewLedgerService(repo, nil, nil)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("ListTransactions", ctx, userID, 50, 0).Return([]models.Transaction{}, nil)

	_, err := svc.ListTransactions(ctx, userID, 0, 0)
	assert.NoError(t, err)

	_, err = svc.ListTransactions(ctx, userID, 500, 0)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
