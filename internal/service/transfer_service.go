package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/goroutine"
	"github.com/LuisNMHN/netmarkethn-backend/internal/logger"
	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
	"github.com/LuisNMHN/netmarkethn-backend/internal/validation"
)

// TransferRepository describes the storage dependencies of TransferService.
type TransferRepository interface {
	Create(ctx context.Context, fromID uuid.UUID, toID *uuid.UUID, amount int64, expiresAt time.Time) (*models.DirectTransfer, error)
	Confirm(ctx context.Context, code string, claimerID uuid.UUID) (*models.DirectTransfer, error)
	Cancel(ctx context.Context, transferID uuid.UUID, asExpired bool) (*models.DirectTransfer, error)
	GetByID(ctx context.Context, transferID uuid.UUID) (*models.DirectTransfer, error)
	GetByCode(ctx context.Context, code string) (*models.DirectTransfer, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.DirectTransfer, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// TransferService implements code-confirmed direct transfers.
type TransferService struct {
	repo     TransferRepository
	notifier Notifier
	ttl      time.Duration
}

func NewTransferService(repo TransferRepository, notifier Notifier, ttl time.Duration) *TransferService {
	return &TransferService{repo: repo, notifier: notifier, ttl: ttl}
}

// Create reserves the amount on the sender and hands back the
// confirmation code. A nil recipient leaves the transfer claimable by
// whoever presents the code.
func (s *TransferService) Create(ctx context.Context, fromID uuid.UUID, toID *uuid.UUID, amount int64) (*models.DirectTransfer, error) {
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, apperror.ErrInvalidAmount
	}
	if toID != nil && *toID == fromID {
		return nil, apperror.ErrSelfReference
	}

	transfer, err := s.repo.Create(ctx, fromID, toID, amount, time.Now().Add(s.ttl))
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return nil, apperror.ErrInsufficientFunds
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to create transfer")
	}

	if toID != nil {
		s.notify(ctx, *toID, transfer, "transfer_pending", "Transfer waiting for you",
			fmt.Sprintf("%s HNLD is waiting for your confirmation code.", formatHNLD(amount)))
	}

	return transfer, nil
}

// Confirm completes a pending transfer by code. The sender cannot claim
// their own transfer, and a designated recipient is enforced.
func (s *TransferService) Confirm(ctx context.Context, claimerID uuid.UUID, code string) (*models.DirectTransfer, error) {
	existing, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrTransferNotFound) {
			return nil, apperror.ErrTransferNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load transfer")
	}

	if existing.FromUserID == claimerID {
		return nil, apperror.ErrSelfReference
	}
	if existing.ToUserID != nil && *existing.ToUserID != claimerID {
		return nil, apperror.ErrForbidden
	}

	transfer, err := s.repo.Confirm(ctx, code, claimerID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTransferNotFound):
			return nil, apperror.ErrTransferNotFound
		case errors.Is(err, repository.ErrEscrowInvalidState):
			return nil, apperror.New(apperror.ErrCodeInvalidState, "transfer is no longer claimable")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to confirm transfer")
	}

	s.notify(ctx, transfer.FromUserID, transfer, "transfer_completed", "Transfer claimed",
		fmt.Sprintf("Your transfer of %s HNLD was claimed.", formatHNLD(transfer.Amount)))
	s.notify(ctx, claimerID, transfer, "transfer_received", "Transfer received",
		fmt.Sprintf("You received %s HNLD.", formatHNLD(transfer.Amount)))

	return transfer, nil
}

// Cancel returns the reserve to the sender. Only the sender may cancel.
func (s *TransferService) Cancel(ctx context.Context, callerID, transferID uuid.UUID) (*models.DirectTransfer, error) {
	existing, err := s.repo.GetByID(ctx, transferID)
	if err != nil {
		if errors.Is(err, repository.ErrTransferNotFound) {
			return nil, apperror.ErrTransferNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load transfer")
	}
	if existing.FromUserID != callerID {
		return nil, apperror.ErrForbidden
	}

	transfer, err := s.repo.Cancel(ctx, transferID, false)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTransferNotFound):
			return nil, apperror.ErrTransferNotFound
		case errors.Is(err, repository.ErrEscrowInvalidState):
			return nil, apperror.New(apperror.ErrCodeInvalidState, "transfer is not pending")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to cancel transfer")
	}

	if transfer.ToUserID != nil {
		s.notify(ctx, *transfer.ToUserID, transfer, "transfer_cancelled", "Transfer cancelled",
			"A transfer addressed to you was cancelled by the sender.")
	}

	return transfer, nil
}

// GetByID returns a transfer visible to the caller.
func (s *TransferService) GetByID(ctx context.Context, callerID, transferID uuid.UUID) (*models.DirectTransfer, error) {
	transfer, err := s.repo.GetByID(ctx, transferID)
	if err != nil {
		if errors.Is(err, repository.ErrTransferNotFound) {
			return nil, apperror.ErrTransferNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load transfer")
	}

	if transfer.FromUserID != callerID && (transfer.ToUserID == nil || *transfer.ToUserID != callerID) {
		return nil, apperror.ErrForbidden
	}

	return transfer, nil
}

// ListByUser returns the caller's transfers.
func (s *TransferService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.DirectTransfer, error) {
	limit = normalizeLimit(limit)
	transfers, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list transfers")
	}
	return transfers, nil
}

// StartSweeper periodically expires pending transfers past their TTL.
func (s *TransferService) StartSweeper(ctx context.Context, every time.Duration) {
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	})
}

func (s *TransferService) sweep(ctx context.Context) {
	ids, err := s.repo.ListExpired(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		logger.Log.Errorf("transfer sweeper: list expired: %v", err)
		return
	}

	for _, id := range ids {
		transfer, err := s.repo.Cancel(ctx, id, true)
		if err != nil {
			if !errors.Is(err, repository.ErrEscrowInvalidState) && !errors.Is(err, repository.ErrTransferNotFound) {
				logger.Log.Errorf("transfer sweeper: expire %s: %v", id, err)
			}
			continue
		}

		s.notify(ctx, transfer.FromUserID, transfer, "transfer_expired", "Transfer expired",
			fmt.Sprintf("Your transfer of %s HNLD expired unclaimed and the funds were returned.", formatHNLD(transfer.Amount)))
	}
}

func (s *TransferService) notify(ctx context.Context, userID uuid.UUID, transfer *models.DirectTransfer, event, title, body string) {
	if s.notifier == nil {
		return
	}
	key := event + ":" + transfer.ID.String()
	s.notifier.Notify(ctx, userID, models.NotificationTopicTransfer, event, title, body,
		models.NotificationPriorityNormal, &key)
}
