package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
)

var ErrTransferNotFound = errors.New("transfer not found")

// Unambiguous alphabet for confirmation codes (no 0/O, 1/I).
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

type TransferRepository struct {
	db *sqlx.DB
}

func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create reserves the amount on the sender and opens a pending transfer
// identified by a human confirmation code.
func (r *TransferRepository) Create(ctx context.Context, fromID uuid.UUID, toID *uuid.UUID, amount int64, expiresAt time.Time) (*models.DirectTransfer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := reserveLocked(ctx, tx, fromID, amount); err != nil {
		return nil, err
	}

	code, err := generateCode(8)
	if err != nil {
		return nil, fmt.Errorf("transfer repository: generate code %w", err)
	}

	var transfer models.DirectTransfer
	err = tx.GetContext(ctx, &transfer, `
		INSERT INTO direct_transfers (from_user_id, to_user_id, amount, status, unique_code, expires_at)
		VALUES ($1, $2, $3, 'pending', $4, $5)
		RETURNING *
	`, fromID, toID, amount, code, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("transfer repository: create %w", err)
	}

	return &transfer, tx.Commit()
}

// Confirm completes a pending transfer: the sender's reserve moves to
// the claimer's balance. Safe to race, the row lock serializes claims.
func (r *TransferRepository) Confirm(ctx context.Context, code string, claimerID uuid.UUID) (*models.DirectTransfer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var transfer models.DirectTransfer
	err = tx.GetContext(ctx, &transfer,
		`SELECT * FROM direct_transfers WHERE unique_code = $1 FOR UPDATE`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("transfer repository: lock transfer %w", err)
	}

	if transfer.Status != models.TransferStatusPending {
		return nil, ErrEscrowInvalidState
	}
	if time.Now().After(transfer.ExpiresAt) {
		return nil, ErrEscrowInvalidState
	}

	recipient := claimerID
	if transfer.ToUserID != nil {
		recipient = *transfer.ToUserID
	}

	if err := releaseReservedTo(ctx, tx, transfer.FromUserID, recipient, transfer.Amount); err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE direct_transfers SET status = 'completed', to_user_id = $2, completed_at = $3 WHERE id = $1
	`, transfer.ID, recipient, now); err != nil {
		return nil, fmt.Errorf("transfer repository: confirm update %w", err)
	}
	transfer.Status = models.TransferStatusCompleted
	transfer.ToUserID = &recipient
	transfer.CompletedAt = &now

	if err := journal(ctx, tx, models.TransactionTypeTransferOut, transfer.Amount, &transfer.FromUserID, &recipient, "Direct transfer"); err != nil {
		return nil, err
	}
	if err := journal(ctx, tx, models.TransactionTypeTransferIn, transfer.Amount, &transfer.FromUserID, &recipient, "Direct transfer"); err != nil {
		return nil, err
	}

	return &transfer, tx.Commit()
}

// Cancel returns the reserve to the sender. Valid while pending; expired
// is used by the sweeper instead of cancelled to keep the two apart.
func (r *TransferRepository) Cancel(ctx context.Context, transferID uuid.UUID, asExpired bool) (*models.DirectTransfer, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var transfer models.DirectTransfer
	err = tx.GetContext(ctx, &transfer,
		`SELECT * FROM direct_transfers WHERE id = $1 FOR UPDATE`, transferID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("transfer repository: lock transfer %w", err)
	}

	if transfer.Status != models.TransferStatusPending {
		return nil, ErrEscrowInvalidState
	}

	if err := refundReserved(ctx, tx, transfer.FromUserID, transfer.Amount); err != nil {
		return nil, err
	}

	status := models.TransferStatusCancelled
	if asExpired {
		status = models.TransferStatusExpired
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE direct_transfers SET status = $2 WHERE id = $1`, transfer.ID, status); err != nil {
		return nil, fmt.Errorf("transfer repository: cancel update %w", err)
	}
	transfer.Status = status

	return &transfer, tx.Commit()
}

// GetByID returns a transfer by id.
func (r *TransferRepository) GetByID(ctx context.Context, transferID uuid.UUID) (*models.DirectTransfer, error) {
	var transfer models.DirectTransfer
	err := r.db.GetContext(ctx, &transfer, `SELECT * FROM direct_transfers WHERE id = $1`, transferID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("transfer repository: get by id %w", err)
	}
	return &transfer, nil
}

// GetByCode looks a transfer up by its confirmation code.
func (r *TransferRepository) GetByCode(ctx context.Context, code string) (*models.DirectTransfer, error) {
	var transfer models.DirectTransfer
	err := r.db.GetContext(ctx, &transfer, `SELECT * FROM direct_transfers WHERE unique_code = $1`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("transfer repository: get by code %w", err)
	}
	return &transfer, nil
}

// ListByUser returns transfers sent or received by the user.
func (r *TransferRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.DirectTransfer, error) {
	var transfers []models.DirectTransfer
	err := r.db.SelectContext(ctx, &transfers, `
		SELECT * FROM direct_transfers WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("transfer repository: list by user %w", err)
	}
	return transfers, nil
}

// ListExpired returns ids of pending transfers past their expiry.
func (r *TransferRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM direct_transfers
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("transfer repository: list expired %w", err)
	}
	return ids, nil
}

// generateCode builds a confirmation code from the unambiguous alphabet.
func generateCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
