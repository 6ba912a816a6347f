package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/LuisNMHN/netmarkethn-backend/internal/logger"
	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
	"github.com/LuisNMHN/netmarkethn-backend/internal/validation"
)

// AuthRepository describes the storage dependencies of AuthService.
type AuthRepository interface {
	Create(ctx context.Context, email, passwordHash, fullName string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	TouchLastLogin(ctx context.Context, userID uuid.UUID) error
	CreateSession(ctx context.Context, userID uuid.UUID, refreshToken string, userAgent, ipAddress *string, expiresAt time.Time) (*models.Session, error)
	GetSession(ctx context.Context, refreshToken string) (*models.Session, error)
	DeleteSession(ctx context.Context, refreshToken string) error
	DeleteUserSessions(ctx context.Context, userID uuid.UUID) error
}

// WelcomeMailer is the optional email side channel for registration.
type WelcomeMailer interface {
	EnqueueWelcomeEmail(userID, email, name string) error
}

// AuthService covers registration, login and session management.
type AuthService struct {
	repo         AuthRepository
	tokenManager *TokenManager
	mailer       WelcomeMailer
}

// RegisterInput carries the sign-up fields.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// LoginInput carries the credentials.
type LoginInput struct {
	Email    string
	Password string
}

// SessionMeta carries request metadata stored with a session.
type SessionMeta struct {
	UserAgent *string
	IPAddress *string
}

// AuthResult is the outcome of a register or login.
type AuthResult struct {
	User      *models.User
	TokenPair *TokenPair
}

func NewAuthService(repo AuthRepository, tokenManager *TokenManager, mailer WelcomeMailer) *AuthService {
	return &AuthService{
		repo:         repo,
		tokenManager: tokenManager,
		mailer:       mailer,
	}
}

// Register creates a new user account and opens a session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta SessionMeta) (*AuthResult, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateFullName(in.FullName); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to hash password")
	}

	user, err := s.repo.Create(ctx, strings.ToLower(strings.TrimSpace(in.Email)), string(passHash), strings.TrimSpace(in.FullName))
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperror.New(apperror.ErrCodeConflict, "email already registered")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to create user")
	}

	if s.mailer != nil {
		if err := s.mailer.EnqueueWelcomeEmail(user.ID.String(), user.Email, user.FullName); err != nil {
			logger.Log.Warnf("auth service: welcome email enqueue failed: %v", err)
		}
	}

	pair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Login verifies the credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta SessionMeta) (*AuthResult, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load user")
	}

	if !user.IsActive {
		return nil, apperror.ErrForbidden
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID); err != nil {
		logger.Log.Warnf("auth service: touch last login failed: %v", err)
	}

	pair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Refresh rotates a refresh token: the presented session is deleted and
// a new pair is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*AuthResult, error) {
	claims, err := s.tokenManager.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.ErrUnauthenticated
	}

	session, err := s.repo.GetSession(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, apperror.ErrUnauthenticated
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load session")
	}
	if time.Now().After(session.ExpiresAt) {
		_ = s.repo.DeleteSession(ctx, refreshToken)
		return nil, apperror.ErrUnauthenticated
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID != session.UserID {
		return nil, apperror.ErrUnauthenticated
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrUnauthenticated
	}

	if err := s.repo.DeleteSession(ctx, refreshToken); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to rotate session")
	}

	pair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Logout removes the presented session.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.repo.DeleteSession(ctx, refreshToken); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to delete session")
	}
	return nil
}

// LogoutAll removes every session of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.DeleteUserSessions(ctx, userID); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to delete sessions")
	}
	return nil
}

// GetUser returns a user by id.
func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load user")
	}
	return user, nil
}

func (s *AuthService) openSession(ctx context.Context, user *models.User, meta SessionMeta) (*TokenPair, error) {
	pair, _, refreshExp, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to issue tokens")
	}

	if _, err := s.repo.CreateSession(ctx, user.ID, pair.RefreshToken, meta.UserAgent, meta.IPAddress, refreshExp); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to store session")
	}

	return pair, nil
}
