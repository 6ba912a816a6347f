package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
)

type mockAuthRepo struct {
	mock.Mock
}

func (m *mockAuthRepo) Create(ctx context.Context, email, passwordHash, fullName string) (*models.User, error) {
	args := m.Called(ctx, email, passwordHash, fullName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) TouchLastLogin(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockAuthRepo) CreateSession(ctx context.Context, userID uuid.UUID, refreshToken string, userAgent, ipAddress *string, expiresAt time.Time) (*models.Session, error) {
	args := m.Called(ctx, userID, refreshToken, userAgent, ipAddress, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockAuthRepo) GetSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockAuthRepo) DeleteSession(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *mockAuthRepo) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func testTokenManager() *TokenManager {
	return NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
}

func activeUser(password string) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return &models.User{
		ID:           uuid.New(),
		Email:        "maria@example.hn",
		PasswordHash: string(hash),
		FullName:     "María Rodríguez",
		Role:         models.RoleUser,
		IsActive:     true,
	}
}

func TestAuthService_Register_Success(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager(), nil)
	ctx := context.Background()

	user := activeUser("Lempira123")
	repo.On("Create", ctx, "maria@example.hn", mock.AnythingOfType("string"), "María Rodríguez").Return(user, nil)
	repo.On("CreateSession", ctx, user.ID, mock.AnythingOfType("string"), (*string)(nil), (*string)(nil), mock.AnythingOfType("time.Time")).Return(&models.Session{ID: uuid.New(), UserID: user.ID}, nil)

	result, err := svc.Register(ctx, RegisterInput{
		Email:    "Maria@Example.hn",
		Password: "Lempira123",
		FullName: "María Rodríguez",
	}, SessionMeta{})
	assert.NoError(t, err)
	assert.Equal(t, user, result.User)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
	assert.NotEmpty(t, result.TokenPair.RefreshToken)
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager(), nil)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "maria@example.hn",
		Password: "lempira",
		FullName: "María Rodríguez",
	}, SessionMeta{})
	assert.Equal(t, apperror.ErrCodeValidation, apperror.Code(err))
	repo.AssertNotCalled(t, "Create")
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager(), nil)
	ctx := context.Background()

	repo.On("Create", ctx, "maria@example.hn", mock.AnythingOfType("string"), "María Rodríguez").Return(nil, repository.ErrEmailTaken)

	_, err := svc.Register(ctx, RegisterInput{
		Email:    "maria@example.hn",
		Password: "Lempira123",
		FullName: "María Rodríguez",
	}, SessionMeta{})
	assert.Equal(t, apperror.ErrCodeConflict, apperror.Code(err))
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager(), nil)
	ctx := context.Background()

	user := activeUser("Lempira123")
	repo.On("GetByEmail", ctx, user.Email).Return(user, nil)

	_, err := svc.Login(ctx, LoginInput{Email: user.Email, Password: "Quetzal456"}, SessionMeta{})
	assert.Equal(t, apperror.ErrCodeUnauthenticated, apperror.Code(err))
	repo.AssertNotCalled(t, "CreateSession")
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager(), nil)
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "nobody@example.hn").Return(nil, repository.ErrUserNotFound)

	_, err := svc.Login(ctx, LoginInput{Email: "nobody@example.hn", Password: "Lempira123"}, SessionMeta{})
	assert.Equal(t, apperror.ErrCodeUnauthenticated, apperror.Code(err))
}

func TestAuthService_Login_DeactivatedAccount(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager(), nil)
	ctx := context.Background()

	user := activeUser("Lempira123")
	user.IsActive = false
	repo.On("GetByEmail", ctx, user.Email).Return(user, nil)

	_, err := svc.Login(ctx, LoginInput{Email: user.Email, Password: "Lempira123"}, SessionMeta{})
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.Code(err))
}

func TestAuthService_Refresh_RotatesSession(t *testing.T) {
	repo := new(mockAuthRepo)
	tokens := testTokenManager()
	svc := NewAuthService(repo, tokens, nil)
	ctx := context.Background()

	user := activeUser("Lempira123")
	pair, _, refreshExp, err := tokens.GeneratePair(user)
	assert.NoError(t, err)

	session := &models.Session{ID: uuid.New(), UserID: user.ID, RefreshToken: pair.RefreshToken, ExpiresAt: refreshExp}
	repo.On("GetSession", ctx, pair.RefreshToken).Return(session, nil)
	repo.On("GetByID", ctx, user.ID).Return(user, nil)
	repo.On("DeleteSession", ctx, pair.RefreshToken).Return(nil)
	repo.On("CreateSession", ctx, user.ID, mock.AnythingOfType("string"), (*string)(nil), (*string)(nil), mock.AnythingOfType("time.Time")).Return(session, nil)

	result, err := svc.Refresh(ctx, pair.RefreshToken, SessionMeta{})
	assert.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, result.TokenPair.RefreshToken)
	repo.AssertCalled(t, "DeleteSession", ctx, pair.RefreshToken)
}

func TestAuthService_Refresh_GarbageToken(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager(), nil)

	_, err := svc.Refresh(context.Background(), "not-a-jwt", SessionMeta{})
	assert.Equal(t, apperror.ErrCodeUnauthenticated, apperror.Code(err))
	repo.AssertNotCalled(t, "GetSession")
}
