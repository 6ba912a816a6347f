package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
)

var (
	ErrMarketNotFound     = errors.New("market not found")
	ErrMarketInvalidState = errors.New("market action not valid for current status")
)

type MarketRepository struct {
	db *sqlx.DB
}

func NewMarketRepository(db *sqlx.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Create opens a binary market.
func (r *MarketRepository) Create(ctx context.Context, question, outcomeYes, outcomeNo string, closesAt time.Time) (*models.Market, error) {
	var market models.Market
	err := r.db.GetContext(ctx, &market, `
		INSERT INTO markets (question, outcome_yes, outcome_no, closes_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, question, outcomeYes, outcomeNo, closesAt)
	if err != nil {
		return nil, fmt.Errorf("market repository: create %w", err)
	}
	return &market, nil
}

// GetByID returns a market.
func (r *MarketRepository) GetByID(ctx context.Context, marketID uuid.UUID) (*models.Market, error) {
	var market models.Market
	err := r.db.GetContext(ctx, &market, `SELECT * FROM markets WHERE id = $1`, marketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMarketNotFound
		}
		return nil, fmt.Errorf("market repository: get by id %w", err)
	}
	return &market, nil
}

// ListOpen returns open markets ordered by closing time.
func (r *MarketRepository) ListOpen(ctx context.Context, limit, offset int) ([]models.Market, error) {
	var markets []models.Market
	err := r.db.SelectContext(ctx, &markets, `
		SELECT * FROM markets WHERE status = 'open'
		ORDER BY closes_at LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("market repository: list open %w", err)
	}
	return markets, nil
}

// Stake debits the user's ledger balance and adds the stake to the
// chosen outcome's pool. Atomic across ledger, pool and position.
func (r *MarketRepository) Stake(ctx context.Context, marketID, userID uuid.UUID, outcome string, stake int64) (*models.MarketPosition, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	market, err := getMarketLocked(ctx, tx, marketID)
	if err != nil {
		return nil, err
	}
	if market.Status != models.MarketStatusOpen || time.Now().After(market.ClosesAt) {
		return nil, ErrMarketInvalidState
	}

	if err := debitLocked(ctx, tx, userID, stake); err != nil {
		return nil, err
	}

	poolColumn := "pool_yes"
	if outcome == models.MarketOutcomeNo {
		poolColumn = "pool_no"
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE markets SET `+poolColumn+` = `+poolColumn+` + $2 WHERE id = $1`,
		marketID, stake); err != nil {
		return nil, fmt.Errorf("market repository: stake pool update %w", err)
	}

	var position models.MarketPosition
	err = tx.GetContext(ctx, &position, `
		INSERT INTO market_positions (market_id, user_id, outcome, stake)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, marketID, userID, outcome, stake)
	if err != nil {
		return nil, fmt.Errorf("market repository: stake position %w", err)
	}

	if err := journal(ctx, tx, models.TransactionTypeMarketStake, stake, &userID, nil, "Market stake: "+market.Question); err != nil {
		return nil, err
	}

	return &position, tx.Commit()
}

// Resolve settles the market on the winning outcome. Winning stakes are
// paid pro-rata from the combined pool with integer division; the
// remainder from rounding stays unminted.
func (r *MarketRepository) Resolve(ctx context.Context, marketID uuid.UUID, outcome string) (*models.Market, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	market, err := getMarketLocked(ctx, tx, marketID)
	if err != nil {
		return nil, err
	}
	if market.Status != models.MarketStatusOpen {
		return nil, ErrMarketInvalidState
	}

	winningPool := market.PoolYes
	if outcome == models.MarketOutcomeNo {
		winningPool = market.PoolNo
	}
	totalPool := market.PoolYes + market.PoolNo

	// No winners: refund every stake instead of burning the pool.
	if winningPool == 0 {
		if err := refundStakes(ctx, tx, market); err != nil {
			return nil, err
		}
	} else {
		var positions []models.MarketPosition
		err = tx.SelectContext(ctx, &positions, `
			SELECT * FROM market_positions WHERE market_id = $1 AND outcome = $2
		`, marketID, outcome)
		if err != nil {
			return nil, fmt.Errorf("market repository: resolve winners %w", err)
		}
		for i := range positions {
			p := &positions[i]
			payout := proRataPayout(p.Stake, totalPool, winningPool)
			if err := creditInTx(ctx, tx, p.UserID, payout); err != nil {
				return nil, err
			}
			if err := journal(ctx, tx, models.TransactionTypeMarketPayout, payout, nil, &p.UserID, "Market payout: "+market.Question); err != nil {
				return nil, err
			}
		}
	}

	err = tx.GetContext(ctx, market, `
		UPDATE markets SET status = 'resolved', resolved_outcome = $2 WHERE id = $1
		RETURNING *
	`, marketID, outcome)
	if err != nil {
		return nil, fmt.Errorf("market repository: resolve update %w", err)
	}

	return market, tx.Commit()
}

// Void cancels an open market and refunds every stake.
func (r *MarketRepository) Void(ctx context.Context, marketID uuid.UUID) (*models.Market, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	market, err := getMarketLocked(ctx, tx, marketID)
	if err != nil {
		return nil, err
	}
	if market.Status != models.MarketStatusOpen {
		return nil, ErrMarketInvalidState
	}

	if err := refundStakes(ctx, tx, market); err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, market,
		`UPDATE markets SET status = 'voided' WHERE id = $1 RETURNING *`, marketID)
	if err != nil {
		return nil, fmt.Errorf("market repository: void update %w", err)
	}

	return market, tx.Commit()
}

// ListStakers returns the distinct users holding positions on a market.
func (r *MarketRepository) ListStakers(ctx context.Context, marketID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT user_id FROM market_positions WHERE market_id = $1
	`, marketID)
	if err != nil {
		return nil, fmt.Errorf("market repository: list stakers %w", err)
	}
	return ids, nil
}

// ListPositions returns the user's positions on a market.
func (r *MarketRepository) ListPositions(ctx context.Context, marketID, userID uuid.UUID) ([]models.MarketPosition, error) {
	var positions []models.MarketPosition
	err := r.db.SelectContext(ctx, &positions, `
		SELECT * FROM market_positions WHERE market_id = $1 AND user_id = $2
		ORDER BY created_at
	`, marketID, userID)
	if err != nil {
		return nil, fmt.Errorf("market repository: list positions %w", err)
	}
	return positions, nil
}

func getMarketLocked(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID) (*models.Market, error) {
	var market models.Market
	err := tx.GetContext(ctx, &market, `SELECT * FROM markets WHERE id = $1 FOR UPDATE`, marketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMarketNotFound
		}
		return nil, fmt.Errorf("market repository: lock market %w", err)
	}
	return &market, nil
}

// refundStakes returns every stake on the market to its owner.
func refundStakes(ctx context.Context, tx *sqlx.Tx, market *models.Market) error {
	var positions []models.MarketPosition
	err := tx.SelectContext(ctx, &positions,
		`SELECT * FROM market_positions WHERE market_id = $1`, market.ID)
	if err != nil {
		return fmt.Errorf("market repository: refund stakes %w", err)
	}
	for i := range positions {
		p := &positions[i]
		if err := creditInTx(ctx, tx, p.UserID, p.Stake); err != nil {
			return err
		}
		if err := journal(ctx, tx, models.TransactionTypeMarketPayout, p.Stake, nil, &p.UserID, "Market refund: "+market.Question); err != nil {
			return err
		}
	}
	return nil
}

// proRataPayout computes stake * totalPool / winningPool without the
// intermediate product overflowing int64. The quotient floors; rounding
// remainders stay in the pool.
func proRataPayout(stake, totalPool, winningPool int64) int64 {
	payout := new(big.Int).Mul(big.NewInt(stake), big.NewInt(totalPool))
	payout.Quo(payout, big.NewInt(winningPool))
	return payout.Int64()
}

// creditInTx adds to a user's available balance inside an open tx.
func creditInTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO balances (user_id, balance, reserved)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET balance = balances.balance + $2, updated_at = NOW()
	`, userID, amount); err != nil {
		return fmt.Errorf("market repository: credit %w", err)
	}
	return nil
}
