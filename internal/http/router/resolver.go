package router

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
)

// SubjectResolver maps a chat subject to its two parties. Escrows chat
// payer-to-payee, sale requests buyer-to-seller once matched.
type SubjectResolver struct {
	escrows *repository.EscrowRepository
	sales   *repository.SaleRequestRepository
}

func NewSubjectResolver(escrows *repository.EscrowRepository, sales *repository.SaleRequestRepository) *SubjectResolver {
	return &SubjectResolver{escrows: escrows, sales: sales}
}

func (r *SubjectResolver) ResolveSubject(ctx context.Context, subjectType string, subjectID uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	switch subjectType {
	case models.ConversationSubjectEscrow:
		escrow, err := r.escrows.GetByID(ctx, subjectID)
		if err != nil {
			if errors.Is(err, repository.ErrEscrowNotFound) {
				return uuid.Nil, uuid.Nil, apperror.ErrEscrowNotFound
			}
			return uuid.Nil, uuid.Nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load escrow")
		}
		return escrow.PayerID, escrow.PayeeID, nil

	case models.ConversationSubjectSaleRequest:
		request, err := r.sales.GetByID(ctx, subjectID)
		if err != nil {
			if errors.Is(err, repository.ErrSaleRequestNotFound) {
				return uuid.Nil, uuid.Nil, apperror.New(apperror.ErrCodeNotFound, "sale request not found")
			}
			return uuid.Nil, uuid.Nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load sale request")
		}
		if request.BuyerID == nil {
			return uuid.Nil, uuid.Nil, apperror.New(apperror.ErrCodeInvalidState, "sale request has no buyer yet")
		}
		return *request.BuyerID, request.SellerID, nil
	}

	return uuid.Nil, uuid.Nil, apperror.New(apperror.ErrCodeValidation, "unknown conversation subject")
}
