package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrSessionNotFound = errors.New("session not found")
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create registers a new user.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash, fullName string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (email, password_hash, full_name)
		VALUES ($1, $2, $3)
		RETURNING *
	`, email, passwordHash, fullName)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("user repository: create %w", err)
	}
	return &user, nil
}

// GetByID returns a user by id.
func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}
	return &user, nil
}

// GetByEmail returns a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}
	return &user, nil
}

// UpdateKYCStatus sets the user's aggregate KYC state.
func (r *UserRepository) UpdateKYCStatus(ctx context.Context, userID uuid.UUID, status string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET kyc_status = $2, updated_at = NOW() WHERE id = $1
	`, userID, status)
	if err != nil {
		return fmt.Errorf("user repository: update kyc status %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user repository: update kyc status rows %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// TouchLastLogin records a successful login.
func (r *UserRepository) TouchLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("user repository: touch last login %w", err)
	}
	return nil
}

// CreateSession stores a refresh-token session.
func (r *UserRepository) CreateSession(ctx context.Context, userID uuid.UUID, refreshToken string, userAgent, ipAddress *string, expiresAt time.Time) (*models.Session, error) {
	var session models.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (user_id, refresh_token, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, userID, refreshToken, userAgent, ipAddress, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("user repository: create session %w", err)
	}
	return &session, nil
}

// GetSession returns a session by its refresh token.
func (r *UserRepository) GetSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	var session models.Session
	err := r.db.GetContext(ctx, &session,
		`SELECT * FROM sessions WHERE refresh_token = $1`, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("user repository: get session %w", err)
	}
	return &session, nil
}

// DeleteSession removes a session, for logout and rotation.
func (r *UserRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE refresh_token = $1`, refreshToken)
	if err != nil {
		return fmt.Errorf("user repository: delete session %w", err)
	}
	return nil
}

// DeleteUserSessions removes all sessions of a user.
func (r *UserRepository) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("user repository: delete user sessions %w", err)
	}
	return nil
}
