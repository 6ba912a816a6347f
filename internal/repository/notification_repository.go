package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create persists a notification. When a dedupe key is set and a
// non-expired row with the same (user, key) already exists the existing
// row is returned and created reports false, so emission is idempotent.
// An expired row does not hold its key: it is removed before the insert.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) (*models.Notification, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("notification repository: begin create %w", err)
	}
	defer tx.Rollback()

	if n.DedupeKey != nil {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM notifications
			WHERE user_id = $1 AND dedupe_key = $2
			  AND expires_at IS NOT NULL AND expires_at < NOW()
		`, n.UserID, n.DedupeKey); err != nil {
			return nil, false, fmt.Errorf("notification repository: release expired dedupe key %w", err)
		}
	}

	var stored models.Notification
	err = tx.GetContext(ctx, &stored, `
		INSERT INTO notifications (user_id, topic, event, title, body, priority, dedupe_key, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, dedupe_key) WHERE dedupe_key IS NOT NULL DO NOTHING
		RETURNING *
	`, n.UserID, n.Topic, n.Event, n.Title, n.Body, n.Priority, n.DedupeKey, n.ExpiresAt)
	if err == nil {
		return &stored, true, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("notification repository: create %w", err)
	}

	// Conflict path: fetch the row that absorbed the insert.
	err = tx.GetContext(ctx, &stored, `
		SELECT * FROM notifications WHERE user_id = $1 AND dedupe_key = $2
	`, n.UserID, n.DedupeKey)
	if err != nil {
		return nil, false, fmt.Errorf("notification repository: get deduped %w", err)
	}
	return &stored, false, tx.Commit()
}

// ListByUser returns the user's notifications, newest first. Archived
// rows and expired rows are excluded unless includeArchived is set.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, includeArchived bool, limit, offset int) ([]models.Notification, error) {
	query := `
		SELECT * FROM notifications
		WHERE user_id = $1
		  AND (expires_at IS NULL OR expires_at > NOW())
	`
	if !includeArchived {
		query += ` AND status <> 'archived'`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("notification repository: list by user %w", err)
	}
	return notifications, nil
}

// CountUnread returns the number of unread, non-expired notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND status = 'unread'
		  AND (expires_at IS NULL OR expires_at > NOW())
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("notification repository: count unread %w", err)
	}
	return count, nil
}

// MarkRead flips one of the user's notifications to read.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET status = 'read'
		WHERE id = $1 AND user_id = $2 AND status = 'unread'
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("notification repository: mark read %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("notification repository: mark read rows %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead flips every unread notification of the user and returns
// how many were affected.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET status = 'read'
		WHERE user_id = $1 AND status = 'unread'
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("notification repository: mark all read %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("notification repository: mark all read rows %w", err)
	}
	return affected, nil
}

// Archive hides a notification from default listings.
func (r *NotificationRepository) Archive(ctx context.Context, userID, notificationID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET status = 'archived'
		WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("notification repository: archive %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("notification repository: archive rows %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// DeleteExpired removes notifications past their expiry. Run periodically.
func (r *NotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("notification repository: delete expired %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("notification repository: delete expired rows %w", err)
	}
	return deleted, nil
}

// ListActiveUserIDs returns ids of active users, for broadcasts.
func (r *NotificationRepository) ListActiveUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM users WHERE is_active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("notification repository: list active users %w", err)
	}
	return ids, nil
}
