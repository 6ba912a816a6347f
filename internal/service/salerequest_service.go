package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/logger"
	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
	"github.com/LuisNMHN/netmarkethn-backend/internal/validation"
)

// SaleRequestRepository describes the storage dependencies of
// SaleRequestService.
type SaleRequestRepository interface {
	Create(ctx context.Context, sellerID uuid.UUID, amount, priceLPS int64) (*models.SaleRequest, error)
	GetByID(ctx context.Context, requestID uuid.UUID) (*models.SaleRequest, error)
	ListOpen(ctx context.Context, limit, offset int) ([]models.SaleRequest, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.SaleRequest, error)
	Match(ctx context.Context, requestID, buyerID, escrowID uuid.UUID) (*models.SaleRequest, error)
	SetStatus(ctx context.Context, requestID uuid.UUID, from, to string) (*models.SaleRequest, error)
}

// SaleEscrows is the escrow surface the sale flow drives.
type SaleEscrows interface {
	Create(ctx context.Context, payerID, payeeID uuid.UUID, amount int64, escrowType string) (*models.Escrow, error)
	Lock(ctx context.Context, callerID, escrowID uuid.UUID) (*models.Escrow, error)
	Release(ctx context.Context, callerID, escrowID uuid.UUID) (*models.Escrow, error)
	Cancel(ctx context.Context, callerID, escrowID uuid.UUID) (*models.Escrow, error)
}

// BalanceReader reads a user's current balance.
type BalanceReader interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.Balance, error)
}

// SaleRequestService runs the HNLD-for-lempira marketplace. The HNLD leg
// settles through escrow; the lempira leg is paid off-platform.
type SaleRequestService struct {
	repo     SaleRequestRepository
	escrows  SaleEscrows
	balances BalanceReader
	notifier Notifier
	kyc      *KYCGate
}

func NewSaleRequestService(repo SaleRequestRepository, escrows SaleEscrows, balances BalanceReader, notifier Notifier, kyc *KYCGate) *SaleRequestService {
	return &SaleRequestService{
		repo:     repo,
		escrows:  escrows,
		balances: balances,
		notifier: notifier,
		kyc:      kyc,
	}
}

// Create publishes a sale request. The seller's available balance is
// checked up front so obviously unfundable offers never reach the board;
// the binding check happens at accept time when the escrow locks.
func (s *SaleRequestService) Create(ctx context.Context, sellerID uuid.UUID, amount, priceLPS int64) (*models.SaleRequest, error) {
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, apperror.ErrInvalidAmount
	}
	if priceLPS <= 0 {
		return nil, apperror.ErrInvalidAmount
	}
	if err := s.kyc.Allow(ctx, sellerID, amount); err != nil {
		return nil, err
	}

	balance, err := s.balances.GetBalance(ctx, sellerID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load balance")
	}
	if balance.Available < amount {
		return nil, apperror.ErrInsufficientFunds
	}

	request, err := s.repo.Create(ctx, sellerID, amount, priceLPS)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to create sale request")
	}

	return request, nil
}

// ListOpen returns the public board of open requests.
func (s *SaleRequestService) ListOpen(ctx context.Context, limit, offset int) ([]models.SaleRequest, error) {
	limit = normalizeLimit(limit)
	requests, err := s.repo.ListOpen(ctx, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list sale requests")
	}
	return requests, nil
}

// ListMine returns the caller's own requests.
func (s *SaleRequestService) ListMine(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.SaleRequest, error) {
	limit = normalizeLimit(limit)
	requests, err := s.repo.ListBySeller(ctx, sellerID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list sale requests")
	}
	return requests, nil
}

// GetByID returns one request.
func (s *SaleRequestService) GetByID(ctx context.Context, requestID uuid.UUID) (*models.SaleRequest, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrSaleRequestNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "sale request not found")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load sale request")
	}
	return request, nil
}

// Accept matches a buyer to an open request and locks the seller's HNLD
// in a sale escrow. If the seller can no longer fund the escrow the
// request stays open.
func (s *SaleRequestService) Accept(ctx context.Context, buyerID, requestID uuid.UUID) (*models.SaleRequest, error) {
	request, err := s.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.SellerID == buyerID {
		return nil, apperror.ErrSelfReference
	}
	if request.Status != models.SaleRequestStatusOpen {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "sale request is not open")
	}

	escrow, err := s.escrows.Create(ctx, request.SellerID, buyerID, request.Amount, models.EscrowTypeSale)
	if err != nil {
		return nil, err
	}
	if _, err := s.escrows.Lock(ctx, request.SellerID, escrow.ID); err != nil {
		if _, cancelErr := s.escrows.Cancel(ctx, request.SellerID, escrow.ID); cancelErr != nil {
			logger.Log.Errorf("sale request service: cancel unfunded escrow %s: %v", escrow.ID, cancelErr)
		}
		return nil, err
	}

	matched, err := s.repo.Match(ctx, requestID, buyerID, escrow.ID)
	if err != nil {
		// Lost the race for the request; unwind the escrow.
		if _, cancelErr := s.escrows.Cancel(ctx, request.SellerID, escrow.ID); cancelErr != nil {
			logger.Log.Errorf("sale request service: unwind escrow %s: %v", escrow.ID, cancelErr)
		}
		if errors.Is(err, repository.ErrSaleRequestInvalidState) {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "sale request is not open")
		}
		if errors.Is(err, repository.ErrSaleRequestNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "sale request not found")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to match sale request")
	}

	s.notify(ctx, request.SellerID, matched, "sale_matched", "Sale request accepted",
		fmt.Sprintf("A buyer accepted your sale of %s HNLD. Your HNLD is locked in escrow until you confirm payment.", formatHNLD(request.Amount)))

	return matched, nil
}

// Complete finishes a matched sale: the seller confirms the lempira
// payment arrived and the escrowed HNLD releases to the buyer.
func (s *SaleRequestService) Complete(ctx context.Context, sellerID, requestID uuid.UUID) (*models.SaleRequest, error) {
	request, err := s.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.SellerID != sellerID {
		return nil, apperror.ErrForbidden
	}
	if request.Status != models.SaleRequestStatusMatched || request.EscrowID == nil {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "sale request is not matched")
	}

	if _, err := s.escrows.Release(ctx, sellerID, *request.EscrowID); err != nil {
		return nil, err
	}

	completed, err := s.repo.SetStatus(ctx, requestID, models.SaleRequestStatusMatched, models.SaleRequestStatusCompleted)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to complete sale request")
	}

	if completed.BuyerID != nil {
		s.notify(ctx, *completed.BuyerID, completed, "sale_completed", "Sale completed",
			fmt.Sprintf("The seller confirmed payment; %s HNLD was released to you.", formatHNLD(completed.Amount)))
	}

	return completed, nil
}

// Cancel withdraws a request. Open requests simply close; matched ones
// also unwind the escrow, refunding the seller's HNLD. The seller may
// always cancel, the buyer only while matched.
func (s *SaleRequestService) Cancel(ctx context.Context, callerID, requestID uuid.UUID) (*models.SaleRequest, error) {
	request, err := s.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	isSeller := request.SellerID == callerID
	isBuyer := request.BuyerID != nil && *request.BuyerID == callerID
	if !isSeller && !isBuyer {
		return nil, apperror.ErrForbidden
	}

	switch request.Status {
	case models.SaleRequestStatusOpen:
		if !isSeller {
			return nil, apperror.ErrForbidden
		}
	case models.SaleRequestStatusMatched:
		if request.EscrowID != nil {
			if _, err := s.escrows.Cancel(ctx, request.SellerID, *request.EscrowID); err != nil && !apperror.IsInvalidState(err) {
				return nil, err
			}
		}
	default:
		return nil, apperror.New(apperror.ErrCodeInvalidState, "sale request already settled")
	}

	cancelled, err := s.repo.SetStatus(ctx, requestID, request.Status, models.SaleRequestStatusCancelled)
	if err != nil {
		if errors.Is(err, repository.ErrSaleRequestInvalidState) {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "sale request already settled")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to cancel sale request")
	}

	other := cancelled.SellerID
	if isSeller && cancelled.BuyerID != nil {
		other = *cancelled.BuyerID
	}
	if other != callerID {
		s.notify(ctx, other, cancelled, "sale_cancelled", "Sale cancelled",
			"The sale request was cancelled and any escrowed HNLD returned to the seller.")
	}

	return cancelled, nil
}

func (s *SaleRequestService) notify(ctx context.Context, userID uuid.UUID, request *models.SaleRequest, event, title, body string) {
	if s.notifier == nil {
		return
	}
	key := event + ":" + request.ID.String()
	s.notifier.Notify(ctx, userID, models.NotificationTopicLedger, event, title, body,
		models.NotificationPriorityNormal, &key)
}
