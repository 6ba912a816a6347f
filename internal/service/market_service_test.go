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

type mockMarketRepo struct {
	mock.Mock
}

func (m *mockMarketRepo) Create(ctx context.Context, question, outcomeYes, outcomeNo string, closesAt time.Time) (*models.Market, error) {
	args := m.Called(ctx, question, outcomeYes, outcomeNo, closesAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Market), args.Error(1)
}

func (m *mockMarketRepo) GetByID(ctx context.Context, marketID uuid.UUID) (*models.Market, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Market), args.Error(1)
}

func (m *mockMarketRepo) ListOpen(ctx context.Context, limit, offset int) ([]models.Market, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.Market), args.Error(1)
}

func (m *mockMarketRepo) Stake(ctx context.Context, marketID, userID uuid.UUID, outcome string, stake int64) (*models.MarketPosition, error) {
	args := m.Called(ctx, marketID, userID, outcome, stake)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarketPosition), args.Error(1)
}

func (m *mockMarketRepo) Resolve(ctx context.Context, marketID uuid.UUID, outcome string) (*models.Market, error) {
	args := m.Called(ctx, marketID, outcome)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Market), args.Error(1)
}

func (m *mockMarketRepo) Void(ctx context.Context, marketID uuid.UUID) (*models.Market, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Market), args.Error(1)
}

func (m *mockMarketRepo) ListStakers(ctx context.Context, marketID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, marketID)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockMarketRepo) ListPositions(ctx context.Context, marketID, userID uuid.UUID) ([]models.MarketPosition, error) {
	args := m.Called(ctx, marketID, userID)
	return args.Get(0).([]models.MarketPosition), args.Error(1)
}

func TestMarketService_Create_Validation(t *testing.T) {
	repo := new(mockMarketRepo)
	svc := NewMarketService(repo, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "too short", "", "", time.Now().Add(time.Hour))
	assert.Equal(t, apperror.ErrCodeValidation, apperror.Code(err))

	_, err = svc.Create(ctx, "Will the lempira strengthen against the dollar this quarter?", "", "", time.Now().Add(-time.Hour))
	assert.Equal(t, apperror.ErrCodeValidation, apperror.Code(err))

	repo.AssertNotCalled(t, "Create")
}

func TestMarketService_Create_DefaultOutcomes(t *testing.T) {
	repo := new(mockMarketRepo)
	svc := NewMarketService(repo, nil)
	ctx := context.Background()
	closesAt := time.Now().Add(48 * time.Hour)
	question := "Will the lempira strengthen against the dollar this quarter?"

	expected := &models.Market{ID: uuid.New(), Question: question, Status: models.MarketStatusOpen}
	repo.On("Create", ctx, question, models.MarketOutcomeYes, models.MarketOutcomeNo, closesAt).Return(expected, nil)

	market, err := svc.Create(ctx, question, "", "", closesAt)
	assert.NoError(t, err)
	assert.Equal(t, expected, market)
}

func TestMarketService_Stake_InvalidOutcome(t *testing.T) {
	repo := new(mockMarketRepo)
	svc := NewMarketService(repo, nil)

	_, err := svc.Stake(context.Background(), uuid.New(), uuid.New(), "maybe", 1000)
	assert.Equal(t, apperror.ErrCodeValidation, apperror.Code(err))
	repo.AssertNotCalled(t, "Stake")
}

func TestMarketService_Stake_ClosedMarket(t *testing.T) {
	repo := new(mockMarketRepo)
	svc := NewMarketService(repo, nil)
	ctx := context.Background()
	userID := uuid.New()
	marketID := uuid.New()

	repo.On("Stake", ctx, marketID, userID, models.MarketOutcomeYes, int64(1000)).Return(nil, repository.ErrMarketInvalidState)

	_, err := svc.Stake(ctx, userID, marketID, models.MarketOutcomeYes, 1000)
	assert.Equal(t, apperror.ErrCodeInvalidState, apperror.Code(err))
}

func TestMarketService_Resolve_NotifiesStakers(t *testing.T) {
	repo := new(mockMarketRepo)
	notifier := &mockNotifier{}
	svc := NewMarketService(repo, notifier)
	ctx := context.Background()
	marketID := uuid.New()
	stakers := []uuid.UUID{uuid.New(), uuid.New()}

	resolved := &models.Market{ID: marketID, Question: "Will it rain in Tegucigalpa tomorrow?", Status: models.MarketStatusResolved}
	repo.On("Resolve", ctx, marketID, models.MarketOutcomeYes).Return(resolved, nil)
	repo.On("ListStakers", ctx, marketID).Return(stakers, nil)

	_, err := svc.Resolve(ctx, marketID, models.MarketOutcomeYes)
	assert.NoError(t, err)
	assert.Len(t, notifier.callsFor(stakers[0]), 1)
	assert.Len(t, notifier.callsFor(stakers[1]), 1)
}

func TestMarketService_Void_NotifiesStakers(t *testing.T) {
	repo := new(mockMarketRepo)
	notifier := &mockNotifier{}
	svc := NewMarketService(repo, notifier)
	ctx := context.Background()
	marketID := uuid.New()
	staker := uuid.New()

	voided := &models.Market{ID: marketID, Question: "Will it rain in Tegucigalpa tomorrow?", Status: models.MarketStatusVoided}
	repo.On("Void", ctx, marketID).Return(voided, nil)
	repo.On("ListStakers", ctx, marketID).Return([]uuid.UUID{staker}, nil)

	_, err := svc.Void(ctx, marketID)
	assert.NoError(t, err)

	calls := notifier.callsFor(staker)
	assert.Len(t, calls, 1)
	assert.Equal(t, "market_voided", calls[0].Event)
}
