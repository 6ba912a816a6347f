package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/logger"
	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
	"github.com/LuisNMHN/netmarkethn-backend/internal/validation"
)

// MarketRepository describes the storage dependencies of MarketService.
type MarketRepository interface {
	Create(ctx context.Context, question, outcomeYes, outcomeNo string, closesAt time.Time) (*models.Market, error)
	GetByID(ctx context.Context, marketID uuid.UUID) (*models.Market, error)
	ListOpen(ctx context.Context, limit, offset int) ([]models.Market, error)
	Stake(ctx context.Context, marketID, userID uuid.UUID, outcome string, stake int64) (*models.MarketPosition, error)
	Resolve(ctx context.Context, marketID uuid.UUID, outcome string) (*models.Market, error)
	Void(ctx context.Context, marketID uuid.UUID) (*models.Market, error)
	ListStakers(ctx context.Context, marketID uuid.UUID) ([]uuid.UUID, error)
	ListPositions(ctx context.Context, marketID, userID uuid.UUID) ([]models.MarketPosition, error)
}

// MarketService runs binary prediction markets on the HNLD ledger.
type MarketService struct {
	repo     MarketRepository
	notifier Notifier
}

func NewMarketService(repo MarketRepository, notifier Notifier) *MarketService {
	return &MarketService{repo: repo, notifier: notifier}
}

// Create opens a market. Admin only, enforced at the router.
func (s *MarketService) Create(ctx context.Context, question, outcomeYes, outcomeNo string, closesAt time.Time) (*models.Market, error) {
	if err := validation.ValidateMarketQuestion(question); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if closesAt.Before(time.Now()) {
		return nil, apperror.New(apperror.ErrCodeValidation, "market must close in the future")
	}
	if outcomeYes == "" {
		outcomeYes = models.MarketOutcomeYes
	}
	if outcomeNo == "" {
		outcomeNo = models.MarketOutcomeNo
	}

	market, err := s.repo.Create(ctx, question, outcomeYes, outcomeNo, closesAt)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to create market")
	}
	return market, nil
}

// GetByID returns one market.
func (s *MarketService) GetByID(ctx context.Context, marketID uuid.UUID) (*models.Market, error) {
	market, err := s.repo.GetByID(ctx, marketID)
	if err != nil {
		if errors.Is(err, repository.ErrMarketNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "market not found")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load market")
	}
	return market, nil
}

// ListOpen returns markets still accepting stakes.
func (s *MarketService) ListOpen(ctx context.Context, limit, offset int) ([]models.Market, error) {
	limit = normalizeLimit(limit)
	markets, err := s.repo.ListOpen(ctx, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list markets")
	}
	return markets, nil
}

// Stake places HNLD on one outcome of an open market.
func (s *MarketService) Stake(ctx context.Context, userID, marketID uuid.UUID, outcome string, stake int64) (*models.MarketPosition, error) {
	if err := validation.ValidateAmount(stake); err != nil {
		return nil, apperror.ErrInvalidAmount
	}
	if outcome != models.MarketOutcomeYes && outcome != models.MarketOutcomeNo {
		return nil, apperror.New(apperror.ErrCodeValidation, "outcome must be yes or no")
	}

	position, err := s.repo.Stake(ctx, marketID, userID, outcome, stake)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMarketNotFound):
			return nil, apperror.New(apperror.ErrCodeNotFound, "market not found")
		case errors.Is(err, repository.ErrMarketInvalidState):
			return nil, apperror.New(apperror.ErrCodeInvalidState, "market is not accepting stakes")
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, apperror.ErrInsufficientFunds
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to stake")
	}

	return position, nil
}

// Resolve settles the market and pays the winners. Admin only, enforced
// at the router.
func (s *MarketService) Resolve(ctx context.Context, marketID uuid.UUID, outcome string) (*models.Market, error) {
	if outcome != models.MarketOutcomeYes && outcome != models.MarketOutcomeNo {
		return nil, apperror.New(apperror.ErrCodeValidation, "outcome must be yes or no")
	}

	market, err := s.repo.Resolve(ctx, marketID, outcome)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMarketNotFound):
			return nil, apperror.New(apperror.ErrCodeNotFound, "market not found")
		case errors.Is(err, repository.ErrMarketInvalidState):
			return nil, apperror.New(apperror.ErrCodeInvalidState, "market is not open")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to resolve market")
	}

	s.notifyMarket(ctx, market, "market_resolved", "Market resolved",
		fmt.Sprintf("The market %q resolved %s. Payouts were credited to the winners.", market.Question, outcome))

	return market, nil
}

// Void cancels a market and refunds every stake. Admin only, enforced at
// the router.
func (s *MarketService) Void(ctx context.Context, marketID uuid.UUID) (*models.Market, error) {
	market, err := s.repo.Void(ctx, marketID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMarketNotFound):
			return nil, apperror.New(apperror.ErrCodeNotFound, "market not found")
		case errors.Is(err, repository.ErrMarketInvalidState):
			return nil, apperror.New(apperror.ErrCodeInvalidState, "market is not open")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to void market")
	}

	s.notifyMarket(ctx, market, "market_voided", "Market voided",
		fmt.Sprintf("The market %q was voided and all stakes refunded.", market.Question))

	return market, nil
}

// ListPositions returns the caller's positions on a market.
func (s *MarketService) ListPositions(ctx context.Context, userID, marketID uuid.UUID) ([]models.MarketPosition, error) {
	positions, err := s.repo.ListPositions(ctx, marketID, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list positions")
	}
	return positions, nil
}

// notifyMarket tells every staker about a settlement. The dedupe key is
// per user and market, so a retried settlement never double-notifies.
func (s *MarketService) notifyMarket(ctx context.Context, market *models.Market, event, title, body string) {
	if s.notifier == nil {
		return
	}

	stakers, err := s.repo.ListStakers(ctx, market.ID)
	if err != nil {
		logger.Log.Errorf("market service: list stakers for %s: %v", market.ID, err)
		return
	}

	key := event + ":" + market.ID.String()
	for _, userID := range stakers {
		s.notifier.Notify(ctx, userID, models.NotificationTopicMarket, event, title, body,
			models.NotificationPriorityNormal, &key)
	}
}
