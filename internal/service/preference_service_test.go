package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
)

type mockPreferenceRepo struct {
	mock.Mock
}

func (m *mockPreferenceRepo) Set(ctx context.Context, userID uuid.UUID, key string, value json.RawMessage) (*models.Preference, error) {
	args := m.Called(ctx, userID, key, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Preference), args.Error(1)
}

func (m *mockPreferenceRepo) Get(ctx context.Context, userID uuid.UUID, key string) (*models.Preference, error) {
	args := m.Called(ctx, userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Preference), args.Error(1)
}

func (m *mockPreferenceRepo) List(ctx context.Context, userID uuid.UUID) ([]models.Preference, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Preference), args.Error(1)
}

func (m *mockPreferenceRepo) Delete(ctx context.Context, userID uuid.UUID, key string) error {
	args := m.Called(ctx, userID, key)
	return args.Error(0)
}

func TestPreferenceService_Set_Success(t *testing.T) {
	repo := new(mockPreferenceRepo)
	svc := NewPreferenceService(repo)
	ctx := context.Background()
	userID := uuid.New()
	value := json.RawMessage(`"dark"`)

	expected := &models.Preference{UserID: userID, Key: "theme", Value: value}
	repo.On("Set", ctx, userID, "theme", value).Return(expected, nil)

	preference, err := svc.Set(ctx, userID, "theme", value)
	assert.NoError(t, err)
	assert.Equal(t, expected, preference)
}

func TestPreferenceService_Set_UnknownKey(t *testing.T) {
	repo := new(mockPreferenceRepo)
	svc := NewPreferenceService(repo)

	_, err := svc.Set(context.Background(), uuid.New(), "favorite_color", json.RawMessage(`"red"`))
	assert.Equal(t, apperror.ErrCodeValidation, apperror.Code(err))
	repo.AssertNotCalled(t, "Set")
}

func TestPreferenceService_Set_InvalidJSON(t *testing.T) {
	repo := new(mockPreferenceRepo)
	svc := NewPreferenceService(repo)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Set(ctx, userID, "theme", json.RawMessage(`{"broken"`))
	assert.Equal(t, apperror.ErrCodeValidation, apperror.Code(err))

	_, err = svc.Set(ctx, userID, "theme", nil)
	assert.Equal(t, apperror.ErrCodeValidation, apperror.Code(err))

	repo.AssertNotCalled(t, "Set")
}

func TestPreferenceService_Set_ValueTooLarge(t *testing.T) {
	repo := new(mockPreferenceRepo)
	svc := NewPreferenceService(repo)

	big, _ := json.Marshal(string(bytes.Repeat([]byte("x"), 5000)))
	_, err := svc.Set(context.Background(), uuid.New(), "notifications_email", big)
	assert.Equal(t, apperror.ErrCodeValidation, apperror.Code(err))
	repo.AssertNotCalled(t, "Set")
}

func TestPreferenceService_Get_NotFound(t *testing.T) {
	repo := new(mockPreferenceRepo)
	svc := NewPreferenceService(repo)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("Get", ctx, userID, "locale").Return(nil, repository.ErrPreferenceNotFound)

	_, err := svc.Get(ctx, userID, "locale")
	assert.Equal(t, apperror.ErrCodeNotFound, apperror.Code(err))
}

func TestPreferenceService_Delete_NotFound(t *testing.T) {
	repo := new(mockPreferenceRepo)
	svc := NewPreferenceService(repo)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("Delete", ctx, userID, "theme").Return(repository.ErrPreferenceNotFound)

	err := svc.Delete(ctx, userID, "theme")
	assert.Equal(t, apperror.ErrCodeNotFound, apperror.Code(err))
}
