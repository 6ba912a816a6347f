package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
)

var ErrPreferenceNotFound = errors.New("preference not found")

type PreferenceRepository struct {
	db *sqlx.DB
}

func NewPreferenceRepository(db *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Set upserts one preference entry.
func (r *PreferenceRepository) Set(ctx context.Context, userID uuid.UUID, key string, value json.RawMessage) (*models.Preference, error) {
	var preference models.Preference
	err := r.db.GetContext(ctx, &preference, `
		INSERT INTO preferences (user_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, key) DO UPDATE SET value = $3, updated_at = NOW()
		RETURNING *
	`, userID, key, value)
	if err != nil {
		return nil, fmt.Errorf("preference repository: set %w", err)
	}
	return &preference, nil
}

// Get returns one preference entry.
func (r *PreferenceRepository) Get(ctx context.Context, userID uuid.UUID, key string) (*models.Preference, error) {
	var preference models.Preference
	err := r.db.GetContext(ctx, &preference,
		`SELECT * FROM preferences WHERE user_id = $1 AND key = $2`, userID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPreferenceNotFound
		}
		return nil, fmt.Errorf("preference repository: get %w", err)
	}
	return &preference, nil
}

// List returns every preference the user has set.
func (r *PreferenceRepository) List(ctx context.Context, userID uuid.UUID) ([]models.Preference, error) {
	var preferences []models.Preference
	err := r.db.SelectContext(ctx, &preferences,
		`SELECT * FROM preferences WHERE user_id = $1 ORDER BY key`, userID)
	if err != nil {
		return nil, fmt.Errorf("preference repository: list %w", err)
	}
	return preferences, nil
}

// Delete removes one preference entry.
func (r *PreferenceRepository) Delete(ctx context.Context, userID uuid.UUID, key string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM preferences WHERE user_id = $1 AND key = $2`, userID, key)
	if err != nil {
		return fmt.Errorf("preference repository: delete %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("preference repository: delete rows %w", err)
	}
	if affected == 0 {
		return ErrPreferenceNotFound
	}
	return nil
}
