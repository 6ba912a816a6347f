package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
	"github.com/LuisNMHN/netmarkethn-backend/internal/validation"
)

// LedgerRepository describes the storage dependencies of LedgerService.
type LedgerRepository interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.Balance, error)
	Emit(ctx context.Context, userID uuid.UUID, amount int64, description string) (*models.Transaction, error)
	Burn(ctx context.Context, userID uuid.UUID, amount int64, description string) (*models.Transaction, error)
	Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, description string, reference *string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
}

// Notifier lets services emit in-app notifications without depending on
// the notification service directly.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, topic, event, title, body, priority string, dedupeKey *string)
}

// LedgerService implements the HNLD ledger operations.
type LedgerService struct {
	repo     LedgerRepository
	notifier Notifier
	kyc      *KYCGate
}

func NewLedgerService(repo LedgerRepository, notifier Notifier, kyc *KYCGate) *LedgerService {
	return &LedgerService{repo: repo, notifier: notifier, kyc: kyc}
}

// GetBalance returns the user's balance.
func (s *LedgerService) GetBalance(ctx context.Context, userID uuid.UUID) (*models.Balance, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load balance")
	}
	return balance, nil
}

// Emit mints HNLD onto a user's balance. Admin only, enforced at the
// router.
func (s *LedgerService) Emit(ctx context.Context, userID uuid.UUID, amount int64, description string) (*models.Transaction, error) {
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, apperror.ErrInvalidAmount
	}

	transaction, err := s.repo.Emit(ctx, userID, amount, description)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to emit")
	}

	s.notify(ctx, userID, models.NotificationTopicLedger, "balance_credited",
		"HNLD received", fmt.Sprintf("%s HNLD was credited to your balance.", formatHNLD(amount)),
		models.NotificationPriorityNormal, dedupeFor("emit", transaction.ID))

	return transaction, nil
}

// Burn removes HNLD from a user's available balance. Withdrawals above
// the KYC threshold require a verified user.
func (s *LedgerService) Burn(ctx context.Context, userID uuid.UUID, amount int64, description string) (*models.Transaction, error) {
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, apperror.ErrInvalidAmount
	}
	if err := s.kyc.Allow(ctx, userID, amount); err != nil {
		return nil, err
	}

	transaction, err := s.repo.Burn(ctx, userID, amount, description)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return nil, apperror.ErrInsufficientFunds
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to burn")
	}

	return transaction, nil
}

// Transfer moves HNLD between two users. A caller-supplied reference
// makes the operation idempotent: a repeat with the same reference is
// rejected as a conflict instead of moving funds twice.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, description string, reference *string) (*models.Transaction, error) {
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, apperror.ErrInvalidAmount
	}
	if fromID == toID {
		return nil, apperror.ErrSelfReference
	}

	transaction, err := s.repo.Transfer(ctx, fromID, toID, amount, description, reference)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, apperror.ErrInsufficientFunds
		case errors.Is(err, repository.ErrDuplicateReference):
			return nil, apperror.New(apperror.ErrCodeConflict, "transfer with this reference already processed")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to transfer")
	}

	s.notify(ctx, toID, models.NotificationTopicLedger, "transfer_received",
		"Transfer received", fmt.Sprintf("You received %s HNLD.", formatHNLD(amount)),
		models.NotificationPriorityNormal, dedupeFor("transfer", transaction.ID))

	return transaction, nil
}

// ListTransactions returns the user's journal entries.
func (s *LedgerService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	limit = normalizeLimit(limit)
	transactions, err := s.repo.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list transactions")
	}
	return transactions, nil
}

// GetTransaction returns one journal entry if it belongs to the user.
func (s *LedgerService) GetTransaction(ctx context.Context, userID, transactionID uuid.UUID) (*models.Transaction, error) {
	transaction, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "transaction not found")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load transaction")
	}

	owned := (transaction.FromUserID != nil && *transaction.FromUserID == userID) ||
		(transaction.ToUserID != nil && *transaction.ToUserID == userID)
	if !owned {
		return nil, apperror.ErrForbidden
	}

	return transaction, nil
}

func (s *LedgerService) notify(ctx context.Context, userID uuid.UUID, topic, event, title, body, priority string, dedupeKey *string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, userID, topic, event, title, body, priority, dedupeKey)
}

// formatHNLD renders centavos as a decimal HNLD string.
func formatHNLD(centavos int64) string {
	return fmt.Sprintf("%d.%02d", centavos/100, centavos%100)
}

// dedupeFor builds a stable dedupe key for an entity-scoped event.
func dedupeFor(event string, id uuid.UUID) *string {
	key := event + ":" + id.String()
	return &key
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}
