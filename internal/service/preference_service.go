package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
)

// Largest accepted preference value, marshalled.
const maxPreferenceValueBytes = 4096

// PreferenceRepository describes the storage dependencies of
// PreferenceService.
type PreferenceRepository interface {
	Set(ctx context.Context, userID uuid.UUID, key string, value json.RawMessage) (*models.Preference, error)
	Get(ctx context.Context, userID uuid.UUID, key string) (*models.Preference, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Preference, error)
	Delete(ctx context.Context, userID uuid.UUID, key string) error
}

// PreferenceService keeps per-user settings under a fixed key schema.
type PreferenceService struct {
	repo PreferenceRepository
}

func NewPreferenceService(repo PreferenceRepository) *PreferenceService {
	return &PreferenceService{repo: repo}
}

// Set stores one preference. Keys outside the allowed schema and values
// that are not valid JSON are rejected.
func (s *PreferenceService) Set(ctx context.Context, userID uuid.UUID, key string, value json.RawMessage) (*models.Preference, error) {
	if _, ok := models.AllowedPreferenceKeys[key]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "unknown preference key")
	}
	if len(value) == 0 || !json.Valid(value) {
		return nil, apperror.New(apperror.ErrCodeValidation, "preference value must be valid JSON")
	}
	if len(value) > maxPreferenceValueBytes {
		return nil, apperror.New(apperror.ErrCodeValidation, "preference value too large")
	}

	preference, err := s.repo.Set(ctx, userID, key, value)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to store preference")
	}
	return preference, nil
}

// Get returns one preference.
func (s *PreferenceService) Get(ctx context.Context, userID uuid.UUID, key string) (*models.Preference, error) {
	preference, err := s.repo.Get(ctx, userID, key)
	if err != nil {
		if errors.Is(err, repository.ErrPreferenceNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "preference not found")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load preference")
	}
	return preference, nil
}

// List returns every preference the user has set.
func (s *PreferenceService) List(ctx context.Context, userID uuid.UUID) ([]models.Preference, error) {
	preferences, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list preferences")
	}
	return preferences, nil
}

// Delete removes one preference, reverting the key to its default.
func (s *PreferenceService) Delete(ctx context.Context, userID uuid.UUID, key string) error {
	if err := s.repo.Delete(ctx, userID, key); err != nil {
		if errors.Is(err, repository.ErrPreferenceNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "preference not found")
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to delete preference")
	}
	return nil
}
