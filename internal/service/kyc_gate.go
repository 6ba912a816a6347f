package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
)

// KYCGate blocks large-value operations for unverified users. Amounts at
// or below the threshold pass without a lookup; a nil gate or a zero
// threshold disables the check.
type KYCGate struct {
	users     UserLookup
	threshold int64
}

func NewKYCGate(users UserLookup, threshold int64) *KYCGate {
	return &KYCGate{users: users, threshold: threshold}
}

// Allow returns FORBIDDEN when the amount exceeds the threshold and the
// user's KYC status is not approved.
func (g *KYCGate) Allow(ctx context.Context, userID uuid.UUID, amount int64) error {
	if g == nil || g.users == nil || g.threshold <= 0 || amount <= g.threshold {
		return nil
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load user")
	}
	if user.KYCStatus != models.KYCStatusApproved {
		return apperror.New(apperror.ErrCodeForbidden, "identity verification required for this amount")
	}
	return nil
}
