package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDuplicateReference  = errors.New("duplicate transaction reference")
	ErrBalanceNotFound     = errors.New("balance not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

const uniqueViolation = "23505"

// balanceColumns derives available on every read so the
// available = balance - reserved invariant cannot drift.
const balanceColumns = `user_id, balance, reserved, balance - reserved AS available, updated_at`

type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// GetBalance returns the user's balance, creating a zero row on first read.
func (r *LedgerRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*models.Balance, error) {
	var balance models.Balance
	query := `
		INSERT INTO balances (user_id, balance, reserved)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING ` + balanceColumns
	if err := r.db.GetContext(ctx, &balance, query, userID); err != nil {
		return nil, fmt.Errorf("ledger repository: get balance %w", err)
	}
	return &balance, nil
}

// Emit credits freshly minted HNLD to a user. Atomic across the balance
// update and the journal insert.
func (r *LedgerRepository) Emit(ctx context.Context, userID uuid.UUID, amount int64, description string) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO balances (user_id, balance, reserved)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET balance = balances.balance + $2, updated_at = NOW()
	`, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: emit update balance %w", err)
	}

	var transaction models.Transaction
	err = tx.GetContext(ctx, &transaction, `
		INSERT INTO transactions (type, amount, status, to_user_id, description, completed_at)
		VALUES ('deposit', $1, 'completed', $2, $3, NOW())
		RETURNING *
	`, amount, userID, description)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: emit journal %w", err)
	}

	return &transaction, tx.Commit()
}

// Burn debits HNLD from a user's available balance. The row lock keeps
// the availability check and the debit from interleaving with a
// concurrent debit, so two racing burns can never both succeed on funds
// that cover only one of them.
func (r *LedgerRepository) Burn(ctx context.Context, userID uuid.UUID, amount int64, description string) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := debitLocked(ctx, tx, userID, amount); err != nil {
		return nil, err
	}

	var transaction models.Transaction
	err = tx.GetContext(ctx, &transaction, `
		INSERT INTO transactions (type, amount, status, from_user_id, description, completed_at)
		VALUES ('withdrawal', $1, 'completed', $2, $3, NOW())
		RETURNING *
	`, amount, userID, description)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: burn journal %w", err)
	}

	return &transaction, tx.Commit()
}

// Transfer moves HNLD between two users. Both balance rows are locked in
// a fixed (lexicographic) order to avoid deadlocks between opposing
// transfers. Writes a transfer_out/transfer_in journal pair so balance
// deltas always sum to zero.
func (r *LedgerRepository) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, description string, reference *string) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Make sure both rows exist before locking, otherwise the lock order
	// below could silently skip the receiver.
	for _, id := range []uuid.UUID{fromID, toID} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO balances (user_id, balance, reserved) VALUES ($1, 0, 0)
			ON CONFLICT (user_id) DO NOTHING
		`, id); err != nil {
			return nil, fmt.Errorf("ledger repository: transfer ensure balance %w", err)
		}
	}

	rows, err := tx.QueryxContext(ctx, `
		SELECT user_id, balance - reserved AS available FROM balances
		WHERE user_id IN ($1, $2) ORDER BY user_id FOR UPDATE
	`, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: transfer lock balances %w", err)
	}
	available := make(map[uuid.UUID]int64, 2)
	for rows.Next() {
		var id uuid.UUID
		var avail int64
		if err := rows.Scan(&id, &avail); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ledger repository: transfer scan balance %w", err)
		}
		available[id] = avail
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger repository: transfer read balances %w", err)
	}

	if available[fromID] < amount {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET balance = balance - $2, updated_at = NOW() WHERE user_id = $1
	`, fromID, amount); err != nil {
		return nil, fmt.Errorf("ledger repository: transfer debit %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET balance = balance + $2, updated_at = NOW() WHERE user_id = $1
	`, toID, amount); err != nil {
		return nil, fmt.Errorf("ledger repository: transfer credit %w", err)
	}

	var out models.Transaction
	err = tx.GetContext(ctx, &out, `
		INSERT INTO transactions (type, amount, status, from_user_id, to_user_id, reference, description, completed_at)
		VALUES ('transfer_out', $1, 'completed', $2, $3, $4, $5, NOW())
		RETURNING *
	`, amount, fromID, toID, reference, description)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicateReference
		}
		return nil, fmt.Errorf("ledger repository: transfer journal out %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (type, amount, status, from_user_id, to_user_id, description, completed_at)
		VALUES ('transfer_in', $1, 'completed', $2, $3, $4, NOW())
	`, amount, fromID, toID, description); err != nil {
		return nil, fmt.Errorf("ledger repository: transfer journal in %w", err)
	}

	return &out, tx.Commit()
}

// ListTransactions returns the journal entries touching the user.
func (r *LedgerRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT * FROM transactions
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: list transactions %w", err)
	}
	return transactions, nil
}

// GetTransaction returns one journal entry.
func (r *LedgerRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.GetContext(ctx, &transaction, `SELECT * FROM transactions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("ledger repository: get transaction %w", err)
	}
	return &transaction, nil
}

// debitLocked locks the user's balance row, verifies availability and
// applies the debit. Shared by burns and reservations.
func debitLocked(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount int64) error {
	var available int64
	err := tx.GetContext(ctx, &available,
		`SELECT balance - reserved FROM balances WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("ledger repository: lock balance %w", err)
	}
	if available < amount {
		return ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET balance = balance - $2, updated_at = NOW() WHERE user_id = $1
	`, userID, amount); err != nil {
		return fmt.Errorf("ledger repository: debit balance %w", err)
	}
	return nil
}

// reserveLocked moves amount from available into reserved under a row lock.
func reserveLocked(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount int64) error {
	var available int64
	err := tx.GetContext(ctx, &available,
		`SELECT balance - reserved FROM balances WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("ledger repository: lock balance %w", err)
	}
	if available < amount {
		return ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET reserved = reserved + $2, updated_at = NOW() WHERE user_id = $1
	`, userID, amount); err != nil {
		return fmt.Errorf("ledger repository: reserve balance %w", err)
	}
	return nil
}

// releaseReservedTo moves a previously reserved amount from one user's
// balance into another user's available balance.
func releaseReservedTo(ctx context.Context, tx *sqlx.Tx, fromID, toID uuid.UUID, amount int64) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET balance = balance - $2, reserved = reserved - $2, updated_at = NOW()
		WHERE user_id = $1
	`, fromID, amount); err != nil {
		return fmt.Errorf("ledger repository: release reserved %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO balances (user_id, balance, reserved)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET balance = balances.balance + $2, updated_at = NOW()
	`, toID, amount); err != nil {
		return fmt.Errorf("ledger repository: credit payee %w", err)
	}
	return nil
}

// refundReserved returns a reserved amount to the user's available balance.
func refundReserved(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount int64) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET reserved = reserved - $2, updated_at = NOW() WHERE user_id = $1
	`, userID, amount); err != nil {
		return fmt.Errorf("ledger repository: refund reserved %w", err)
	}
	return nil
}

// journal inserts a completed ledger journal entry inside an open tx.
func journal(ctx context.Context, tx *sqlx.Tx, txType string, amount int64, from, to *uuid.UUID, description string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (type, amount, status, from_user_id, to_user_id, description, completed_at)
		VALUES ($1, $2, 'completed', $3, $4, $5, NOW())
	`, txType, amount, from, to, description); err != nil {
		return fmt.Errorf("ledger repository: journal %s %w", txType, err)
	}
	return nil
}
