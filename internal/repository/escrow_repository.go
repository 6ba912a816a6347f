package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
)

var (
	ErrEscrowNotFound     = errors.New("escrow not found")
	ErrEscrowInvalidState = errors.New("escrow action not valid for current status")
)

type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create inserts a pending escrow. No funds move at this point.
func (r *EscrowRepository) Create(ctx context.Context, payerID, payeeID uuid.UUID, amount int64, escrowType string, expiresAt time.Time) (*models.Escrow, error) {
	var escrow models.Escrow
	err := r.db.GetContext(ctx, &escrow, `
		INSERT INTO escrows (payer_id, payee_id, amount, status, escrow_type, expires_at)
		VALUES ($1, $2, $3, 'pending', $4, $5)
		RETURNING *
	`, payerID, payeeID, amount, escrowType, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: create %w", err)
	}
	return &escrow, nil
}

// Lock moves the escrow amount from the payer's available balance into
// reserve. Valid only from pending. Atomic with the journal insert.
func (r *EscrowRepository) Lock(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	escrow, err := getEscrowLocked(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.Status != models.EscrowStatusPending {
		return nil, ErrEscrowInvalidState
	}

	if err := reserveLocked(ctx, tx, escrow.PayerID, escrow.Amount); err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE escrows SET status = 'locked', locked_at = $2 WHERE id = $1`,
		escrow.ID, now); err != nil {
		return nil, fmt.Errorf("escrow repository: lock update %w", err)
	}
	escrow.Status = models.EscrowStatusLocked
	escrow.LockedAt = &now

	if err := journal(ctx, tx, models.TransactionTypeEscrowHold, escrow.Amount, &escrow.PayerID, nil, "Escrow hold"); err != nil {
		return nil, err
	}

	return escrow, tx.Commit()
}

// Release moves the reserved amount to the payee. Valid only from locked.
func (r *EscrowRepository) Release(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	escrow, err := getEscrowLocked(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.Status != models.EscrowStatusLocked && escrow.Status != models.EscrowStatusDisputed {
		return nil, ErrEscrowInvalidState
	}

	if err := releaseReservedTo(ctx, tx, escrow.PayerID, escrow.PayeeID, escrow.Amount); err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE escrows SET status = 'released', released_at = $2 WHERE id = $1`,
		escrow.ID, now); err != nil {
		return nil, fmt.Errorf("escrow repository: release update %w", err)
	}
	escrow.Status = models.EscrowStatusReleased
	escrow.ReleasedAt = &now

	if err := journal(ctx, tx, models.TransactionTypeEscrowRelease, escrow.Amount, &escrow.PayerID, &escrow.PayeeID, "Escrow release"); err != nil {
		return nil, err
	}

	return escrow, tx.Commit()
}

// Cancel terminates a pending or locked escrow, refunding any reserve.
func (r *EscrowRepository) Cancel(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	escrow, err := cancelInTx(ctx, tx, escrowID, false)
	if err != nil {
		return nil, err
	}
	return escrow, tx.Commit()
}

// Dispute marks a locked escrow as disputed. The reserve stays frozen
// until an admin resolves the dispute.
func (r *EscrowRepository) Dispute(ctx context.Context, escrowID uuid.UUID, reason string) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	escrow, err := getEscrowLocked(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.Status != models.EscrowStatusLocked {
		return nil, ErrEscrowInvalidState
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE escrows SET status = 'disputed', dispute_reason = $2 WHERE id = $1`,
		escrow.ID, reason); err != nil {
		return nil, fmt.Errorf("escrow repository: dispute update %w", err)
	}
	escrow.Status = models.EscrowStatusDisputed
	escrow.DisputeReason = &reason

	return escrow, tx.Commit()
}

// ResolveDispute settles a disputed escrow: release to the payee or
// refund the payer.
func (r *EscrowRepository) ResolveDispute(ctx context.Context, escrowID uuid.UUID, releaseToPayee bool) (*models.Escrow, error) {
	if releaseToPayee {
		return r.Release(ctx, escrowID)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	escrow, err := cancelInTx(ctx, tx, escrowID, true)
	if err != nil {
		return nil, err
	}
	return escrow, tx.Commit()
}

// GetByID returns an escrow by id without touching its state.
func (r *EscrowRepository) GetByID(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	err := r.db.GetContext(ctx, &escrow, `SELECT * FROM escrows WHERE id = $1`, escrowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get by id %w", err)
	}
	return &escrow, nil
}

// ListByUser returns escrows where the user is payer or payee.
func (r *EscrowRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Escrow, error) {
	var escrows []models.Escrow
	err := r.db.SelectContext(ctx, &escrows, `
		SELECT * FROM escrows WHERE payer_id = $1 OR payee_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: list by user %w", err)
	}
	return escrows, nil
}

// ListExpired returns ids of pending/locked escrows whose expiry has
// passed, for the background sweeper.
func (r *EscrowRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM escrows
		WHERE status IN ('pending', 'locked') AND expires_at < $1
		ORDER BY expires_at LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: list expired %w", err)
	}
	return ids, nil
}

// getEscrowLocked fetches an escrow row with FOR UPDATE so state
// transitions serialize per escrow.
func getEscrowLocked(ctx context.Context, tx *sqlx.Tx, escrowID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	err := tx.GetContext(ctx, &escrow, `SELECT * FROM escrows WHERE id = $1 FOR UPDATE`, escrowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: lock escrow %w", err)
	}
	return &escrow, nil
}

// cancelInTx performs the cancel transition inside an open tx.
// allowDisputed additionally accepts the disputed state (dispute
// resolution refunding the payer).
func cancelInTx(ctx context.Context, tx *sqlx.Tx, escrowID uuid.UUID, allowDisputed bool) (*models.Escrow, error) {
	escrow, err := getEscrowLocked(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}

	switch escrow.Status {
	case models.EscrowStatusPending:
		// Nothing reserved yet.
	case models.EscrowStatusLocked:
		if err := refundReserved(ctx, tx, escrow.PayerID, escrow.Amount); err != nil {
			return nil, err
		}
		if err := journal(ctx, tx, models.TransactionTypeEscrowRefund, escrow.Amount, nil, &escrow.PayerID, "Escrow refund"); err != nil {
			return nil, err
		}
	case models.EscrowStatusDisputed:
		if !allowDisputed {
			return nil, ErrEscrowInvalidState
		}
		if err := refundReserved(ctx, tx, escrow.PayerID, escrow.Amount); err != nil {
			return nil, err
		}
		if err := journal(ctx, tx, models.TransactionTypeEscrowRefund, escrow.Amount, nil, &escrow.PayerID, "Escrow dispute refund"); err != nil {
			return nil, err
		}
	default:
		return nil, ErrEscrowInvalidState
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE escrows SET status = 'cancelled', cancelled_at = $2 WHERE id = $1`,
		escrow.ID, now); err != nil {
		return nil, fmt.Errorf("escrow repository: cancel update %w", err)
	}
	escrow.Status = models.EscrowStatusCancelled
	escrow.CancelledAt = &now

	return escrow, nil
}
