package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
)

var (
	ErrSaleRequestNotFound     = errors.New("sale request not found")
	ErrSaleRequestInvalidState = errors.New("sale request action not valid for current status")
)

type SaleRequestRepository struct {
	db *sqlx.DB
}

func NewSaleRequestRepository(db *sqlx.DB) *SaleRequestRepository {
	return &SaleRequestRepository{db: db}
}

// Create publishes an open sale request. No funds move until a buyer
// accepts; the availability check at publish time is advisory and lives
// in the service layer.
func (r *SaleRequestRepository) Create(ctx context.Context, sellerID uuid.UUID, amount, priceLPS int64) (*models.SaleRequest, error) {
	var request models.SaleRequest
	err := r.db.GetContext(ctx, &request, `
		INSERT INTO sale_requests (seller_id, amount, price_lps)
		VALUES ($1, $2, $3)
		RETURNING *
	`, sellerID, amount, priceLPS)
	if err != nil {
		return nil, fmt.Errorf("sale request repository: create %w", err)
	}
	return &request, nil
}

// GetByID returns a sale request.
func (r *SaleRequestRepository) GetByID(ctx context.Context, requestID uuid.UUID) (*models.SaleRequest, error) {
	var request models.SaleRequest
	err := r.db.GetContext(ctx, &request, `SELECT * FROM sale_requests WHERE id = $1`, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSaleRequestNotFound
		}
		return nil, fmt.Errorf("sale request repository: get by id %w", err)
	}
	return &request, nil
}

// ListOpen returns open requests, newest first.
func (r *SaleRequestRepository) ListOpen(ctx context.Context, limit, offset int) ([]models.SaleRequest, error) {
	var requests []models.SaleRequest
	err := r.db.SelectContext(ctx, &requests, `
		SELECT * FROM sale_requests WHERE status = 'open'
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sale request repository: list open %w", err)
	}
	return requests, nil
}

// ListBySeller returns the seller's requests regardless of status.
func (r *SaleRequestRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.SaleRequest, error) {
	var requests []models.SaleRequest
	err := r.db.SelectContext(ctx, &requests, `
		SELECT * FROM sale_requests WHERE seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sale request repository: list by seller %w", err)
	}
	return requests, nil
}

// Match binds a buyer and an escrow to an open request. The row lock
// keeps two racing buyers from both matching it.
func (r *SaleRequestRepository) Match(ctx context.Context, requestID, buyerID, escrowID uuid.UUID) (*models.SaleRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	request, err := getSaleRequestLocked(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.SaleRequestStatusOpen {
		return nil, ErrSaleRequestInvalidState
	}

	err = tx.GetContext(ctx, request, `
		UPDATE sale_requests
		SET status = 'matched', buyer_id = $2, escrow_id = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, requestID, buyerID, escrowID)
	if err != nil {
		return nil, fmt.Errorf("sale request repository: match %w", err)
	}

	return request, tx.Commit()
}

// SetStatus moves a request from one status to another, guarding the
// transition with the expected current status.
func (r *SaleRequestRepository) SetStatus(ctx context.Context, requestID uuid.UUID, from, to string) (*models.SaleRequest, error) {
	var request models.SaleRequest
	err := r.db.GetContext(ctx, &request, `
		UPDATE sale_requests SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING *
	`, requestID, from, to)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either missing or in another status; let callers decide.
			if _, getErr := r.GetByID(ctx, requestID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrSaleRequestInvalidState
		}
		return nil, fmt.Errorf("sale request repository: set status %w", err)
	}
	return &request, nil
}

func getSaleRequestLocked(ctx context.Context, tx *sqlx.Tx, requestID uuid.UUID) (*models.SaleRequest, error) {
	var request models.SaleRequest
	err := tx.GetContext(ctx, &request,
		`SELECT * FROM sale_requests WHERE id = $1 FOR UPDATE`, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSaleRequestNotFound
		}
		return nil, fmt.Errorf("sale request repository: lock request %w", err)
	}
	return &request, nil
}
