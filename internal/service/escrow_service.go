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

const sweepBatchSize = 100

// EscrowRepository describes the storage dependencies of EscrowService.
type EscrowRepository interface {
	Create(ctx context.Context, payerID, payeeID uuid.UUID, amount int64, escrowType string, expiresAt time.Time) (*models.Escrow, error)
	Lock(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error)
	Release(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error)
	Cancel(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error)
	Dispute(ctx context.Context, escrowID uuid.UUID, reason string) (*models.Escrow, error)
	ResolveDispute(ctx context.Context, escrowID uuid.UUID, releaseToPayee bool) (*models.Escrow, error)
	GetByID(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Escrow, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// EscrowService drives the escrow state machine.
type EscrowService struct {
	repo     EscrowRepository
	notifier Notifier
	ttl      time.Duration
}

func NewEscrowService(repo EscrowRepository, notifier Notifier, ttl time.Duration) *EscrowService {
	return &EscrowService{repo: repo, notifier: notifier, ttl: ttl}
}

// Create opens a pending escrow from the caller towards a payee.
func (s *EscrowService) Create(ctx context.Context, payerID, payeeID uuid.UUID, amount int64, escrowType string) (*models.Escrow, error) {
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, apperror.ErrInvalidAmount
	}
	if payerID == payeeID {
		return nil, apperror.ErrSelfReference
	}
	if escrowType != models.EscrowTypeP2P && escrowType != models.EscrowTypeSale {
		return nil, apperror.New(apperror.ErrCodeValidation, "unknown escrow type")
	}

	escrow, err := s.repo.Create(ctx, payerID, payeeID, amount, escrowType, time.Now().Add(s.ttl))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to create escrow")
	}

	s.notifyParty(ctx, payeeID, escrow, "escrow_created", "Escrow opened",
		fmt.Sprintf("An escrow of %s HNLD was opened towards you.", formatHNLD(amount)))

	return escrow, nil
}

// Lock reserves the escrow amount on the payer. Only the payer may lock.
func (s *EscrowService) Lock(ctx context.Context, callerID, escrowID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.getFresh(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.PayerID != callerID {
		return nil, apperror.ErrForbidden
	}

	escrow, err = s.repo.Lock(ctx, escrowID)
	if err != nil {
		return nil, mapEscrowError(err, "failed to lock escrow")
	}

	s.notifyParty(ctx, escrow.PayeeID, escrow, "escrow_locked", "Escrow funded",
		fmt.Sprintf("%s HNLD is now held in escrow.", formatHNLD(escrow.Amount)))

	return escrow, nil
}

// Release hands the held amount to the payee. Only the payer may release.
func (s *EscrowService) Release(ctx context.Context, callerID, escrowID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.getFresh(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.PayerID != callerID {
		return nil, apperror.ErrForbidden
	}
	if escrow.Status != models.EscrowStatusLocked {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "escrow is not locked")
	}

	escrow, err = s.repo.Release(ctx, escrowID)
	if err != nil {
		return nil, mapEscrowError(err, "failed to release escrow")
	}

	s.notifyParty(ctx, escrow.PayeeID, escrow, "escrow_released", "Escrow released",
		fmt.Sprintf("%s HNLD from escrow was released to you.", formatHNLD(escrow.Amount)))

	return escrow, nil
}

// Cancel terminates the escrow and refunds any held amount. The payer
// may cancel while pending or locked; the payee only while pending.
func (s *EscrowService) Cancel(ctx context.Context, callerID, escrowID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.getFresh(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	switch callerID {
	case escrow.PayerID:
	case escrow.PayeeID:
		if escrow.Status != models.EscrowStatusPending {
			return nil, apperror.ErrForbidden
		}
	default:
		return nil, apperror.ErrForbidden
	}

	escrow, err = s.repo.Cancel(ctx, escrowID)
	if err != nil {
		return nil, mapEscrowError(err, "failed to cancel escrow")
	}

	other := escrow.PayeeID
	if callerID == escrow.PayeeID {
		other = escrow.PayerID
	}
	s.notifyParty(ctx, other, escrow, "escrow_cancelled", "Escrow cancelled",
		"The escrow was cancelled and any held funds returned to the payer.")

	return escrow, nil
}

// Dispute freezes a locked escrow until an admin resolves it. Either
// party may raise a dispute.
func (s *EscrowService) Dispute(ctx context.Context, callerID, escrowID uuid.UUID, reason string) (*models.Escrow, error) {
	if err := validation.ValidateLength("dispute reason", reason, 1, validation.MaxDisputeReasonLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	escrow, err := s.getFresh(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if callerID != escrow.PayerID && callerID != escrow.PayeeID {
		return nil, apperror.ErrForbidden
	}

	escrow, err = s.repo.Dispute(ctx, escrowID, reason)
	if err != nil {
		return nil, mapEscrowError(err, "failed to dispute escrow")
	}

	other := escrow.PayeeID
	if callerID == escrow.PayeeID {
		other = escrow.PayerID
	}
	s.notifyParty(ctx, other, escrow, "escrow_disputed", "Escrow disputed",
		"The escrow was put in dispute. The held funds stay frozen until an administrator resolves it.")

	return escrow, nil
}

// ResolveDispute settles a disputed escrow. Admin only, enforced at the
// router.
func (s *EscrowService) ResolveDispute(ctx context.Context, escrowID uuid.UUID, releaseToPayee bool) (*models.Escrow, error) {
	escrow, err := s.repo.ResolveDispute(ctx, escrowID, releaseToPayee)
	if err != nil {
		return nil, mapEscrowError(err, "failed to resolve dispute")
	}

	outcome := "refunded to the payer"
	if releaseToPayee {
		outcome = "released to the payee"
	}
	body := "The dispute was resolved and the held funds were " + outcome + "."
	s.notifyParty(ctx, escrow.PayerID, escrow, "escrow_resolved", "Dispute resolved", body)
	s.notifyParty(ctx, escrow.PayeeID, escrow, "escrow_resolved", "Dispute resolved", body)

	return escrow, nil
}

// GetByID returns an escrow visible to the caller, applying lazy expiry.
func (s *EscrowService) GetByID(ctx context.Context, callerID, escrowID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.getFresh(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if callerID != escrow.PayerID && callerID != escrow.PayeeID {
		return nil, apperror.ErrForbidden
	}
	return escrow, nil
}

// ListByUser returns the caller's escrows.
func (s *EscrowService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Escrow, error) {
	limit = normalizeLimit(limit)
	escrows, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list escrows")
	}
	return escrows, nil
}

// StartSweeper periodically cancels expired escrows in the background.
func (s *EscrowService) StartSweeper(ctx context.Context, every time.Duration) {
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

func (s *EscrowService) sweep(ctx context.Context) {
	ids, err := s.repo.ListExpired(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		logger.Log.Errorf("escrow sweeper: list expired: %v", err)
		return
	}

	for _, id := range ids {
		if _, err := s.expire(ctx, id); err != nil {
			// Another worker or a lazy read may have settled it first.
			if !apperror.IsInvalidState(err) && !apperror.IsNotFound(err) {
				logger.Log.Errorf("escrow sweeper: expire %s: %v", id, err)
			}
		}
	}
}

// expire cancels one expired escrow and tells both parties.
func (s *EscrowService) expire(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.repo.Cancel(ctx, escrowID)
	if err != nil {
		return nil, mapEscrowError(err, "failed to expire escrow")
	}

	s.notifyParty(ctx, escrow.PayerID, escrow, "escrow_expired", "Escrow expired",
		"The escrow expired and any held funds were returned to you.")
	s.notifyParty(ctx, escrow.PayeeID, escrow, "escrow_expired", "Escrow expired",
		"The escrow expired before completion.")

	return escrow, nil
}

// getFresh loads an escrow and settles it first if its expiry has
// passed, so readers never see an expired escrow as still active.
func (s *EscrowService) getFresh(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.repo.GetByID(ctx, escrowID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load escrow")
	}

	if escrow.Expired(time.Now()) {
		expired, err := s.expire(ctx, escrowID)
		if err != nil {
			if apperror.IsInvalidState(err) {
				// A concurrent expire settled it; reload the final state.
				reloaded, reloadErr := s.repo.GetByID(ctx, escrowID)
				if reloadErr != nil {
					return nil, apperror.Wrap(reloadErr, apperror.ErrCodeInternal, "failed to load escrow")
				}
				return reloaded, nil
			}
			return nil, err
		}
		return expired, nil
	}

	return escrow, nil
}

func (s *EscrowService) notifyParty(ctx context.Context, userID uuid.UUID, escrow *models.Escrow, event, title, body string) {
	if s.notifier == nil {
		return
	}
	key := event + ":" + escrow.ID.String()
	s.notifier.Notify(ctx, userID, models.NotificationTopicEscrow, event, title, body,
		models.NotificationPriorityNormal, &key)
}

func mapEscrowError(err error, internalMsg string) error {
	switch {
	case errors.Is(err, repository.ErrEscrowNotFound):
		return apperror.ErrEscrowNotFound
	case errors.Is(err, repository.ErrEscrowInvalidState):
		return apperror.New(apperror.ErrCodeInvalidState, "escrow action not valid for current status")
	case errors.Is(err, repository.ErrInsufficientFunds):
		return apperror.ErrInsufficientFunds
	}
	return apperror.Wrap(err, apperror.ErrCodeInternal, internalMsg)
}
