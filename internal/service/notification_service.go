package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/goroutine"
	"github.com/LuisNMHN/netmarkethn-backend/internal/logger"
	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/pkg/apperror"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
	"github.com/LuisNMHN/netmarkethn-backend/internal/validation"
)

const broadcastWorkers = 8

// NotificationRepository describes the storage dependencies of
// NotificationService.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, includeArchived bool, limit, offset int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Archive(ctx context.Context, userID, notificationID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	ListActiveUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Pusher delivers a notification frame to a user's open WebSocket
// connections.
type Pusher interface {
	PushToUser(userID uuid.UUID, event string, data any) error
}

// NotificationMailer mirrors high priority notifications to email.
type NotificationMailer interface {
	EnqueueNotificationEmail(userID, notificationID, topic, email, title, body string) error
}

// UserLookup resolves a user record, used for the email side channel.
type UserLookup interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// EmitInput is one notification to persist and deliver.
type EmitInput struct {
	UserID    uuid.UUID
	Topic     string
	Event     string
	Title     string
	Body      string
	Priority  string
	DedupeKey *string
	ExpiresAt *time.Time
}

// NotificationService persists notifications and fans them out over the
// delivery channels. The database row is the at-least-once record; the
// WebSocket push and email mirror are best effort on top of it.
type NotificationService struct {
	repo   NotificationRepository
	pusher Pusher
	mailer NotificationMailer
	users  UserLookup
	cache  *CacheService
}

func NewNotificationService(repo NotificationRepository, pusher Pusher, mailer NotificationMailer, users UserLookup, cache *CacheService) *NotificationService {
	return &NotificationService{
		repo:   repo,
		pusher: pusher,
		mailer: mailer,
		users:  users,
		cache:  cache,
	}
}

var validTopics = map[string]struct{}{
	models.NotificationTopicLedger:   {},
	models.NotificationTopicEscrow:   {},
	models.NotificationTopicTransfer: {},
	models.NotificationTopicKYC:      {},
	models.NotificationTopicMarket:   {},
	models.NotificationTopicChat:     {},
	models.NotificationTopicSystem:   {},
}

// Emit persists a notification and delivers it. With a dedupe key the
// call is idempotent: a repeat returns the stored row, created=false,
// and delivers nothing.
func (s *NotificationService) Emit(ctx context.Context, in EmitInput) (*models.Notification, bool, error) {
	if _, ok := validTopics[in.Topic]; !ok {
		return nil, false, apperror.New(apperror.ErrCodeValidation, "unknown notification topic")
	}
	if err := validation.ValidateNonEmpty("title", in.Title); err != nil {
		return nil, false, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.Priority == "" {
		in.Priority = models.NotificationPriorityNormal
	}
	switch in.Priority {
	case models.NotificationPriorityLow, models.NotificationPriorityNormal, models.NotificationPriorityHigh:
	default:
		return nil, false, apperror.New(apperror.ErrCodeValidation, "unknown notification priority")
	}

	notification, created, err := s.repo.Create(ctx, &models.Notification{
		UserID:    in.UserID,
		Topic:     in.Topic,
		Event:     in.Event,
		Title:     in.Title,
		Body:      in.Body,
		Priority:  in.Priority,
		DedupeKey: in.DedupeKey,
		ExpiresAt: in.ExpiresAt,
	})
	if err != nil {
		return nil, false, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to create notification")
	}
	if !created {
		return notification, false, nil
	}

	s.deliver(ctx, notification)
	return notification, true, nil
}

// Notify implements Notifier for the other services: fire-and-forget
// emission that only logs failures.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, topic, event, title, body, priority string, dedupeKey *string) {
	_, _, err := s.Emit(ctx, EmitInput{
		UserID:    userID,
		Topic:     topic,
		Event:     event,
		Title:     title,
		Body:      body,
		Priority:  priority,
		DedupeKey: dedupeKey,
	})
	if err != nil {
		logger.Log.Errorf("notification service: notify %s/%s for %s: %v", topic, event, userID, err)
	}
}

// BroadcastInput is a notification sent to every active user.
type BroadcastInput struct {
	Topic     string
	Event     string
	Title     string
	Body      string
	Priority  string
	ExpiresAt *time.Time
}

// Broadcast emits the notification to all active users through a bounded
// worker pool and returns how many emissions succeeded. Individual
// failures are logged, not propagated.
func (s *NotificationService) Broadcast(ctx context.Context, in BroadcastInput) (int64, error) {
	userIDs, err := s.repo.ListActiveUserIDs(ctx)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list recipients")
	}

	var success int64
	jobs := make(chan uuid.UUID)
	var wg sync.WaitGroup

	for i := 0; i < broadcastWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				_, created, err := s.Emit(ctx, EmitInput{
					UserID:    userID,
					Topic:     in.Topic,
					Event:     in.Event,
					Title:     in.Title,
					Body:      in.Body,
					Priority:  in.Priority,
					ExpiresAt: in.ExpiresAt,
				})
				if err != nil {
					logger.Log.Errorf("notification service: broadcast to %s: %v", userID, err)
					continue
				}
				if created {
					atomic.AddInt64(&success, 1)
				}
			}
		}()
	}

	for _, userID := range userIDs {
		jobs <- userID
	}
	close(jobs)
	wg.Wait()

	return success, nil
}

// List returns the user's notifications.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, includeArchived bool, limit, offset int) ([]models.Notification, error) {
	limit = normalizeLimit(limit)
	notifications, err := s.repo.ListByUser(ctx, userID, includeArchived, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to list notifications")
	}
	return notifications, nil
}

// CountUnread returns the unread counter, served from cache when warm.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.cache != nil {
		if count, ok := s.cache.GetUnreadCount(ctx, userID); ok {
			return count, nil
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to count notifications")
	}

	if s.cache != nil {
		s.cache.SetUnreadCount(ctx, userID, count)
	}
	return count, nil
}

// MarkRead marks one notification read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := s.repo.MarkRead(ctx, userID, notificationID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "notification not found")
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to mark notification read")
	}

	s.invalidate(ctx, userID)
	return nil
}

// MarkAllRead marks every unread notification read and returns the count.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	affected, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to mark notifications read")
	}

	s.invalidate(ctx, userID)
	return affected, nil
}

// Archive hides a notification from default listings.
func (s *NotificationService) Archive(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := s.repo.Archive(ctx, userID, notificationID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "notification not found")
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to archive notification")
	}

	s.invalidate(ctx, userID)
	return nil
}

// PurgeExpired removes notifications past their expiry.
func (s *NotificationService) PurgeExpired(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to purge notifications")
	}
	return deleted, nil
}

// StartSweeper periodically purges expired notifications in the
// background.
func (s *NotificationService) StartSweeper(ctx context.Context, every time.Duration) {
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.PurgeExpired(ctx)
				if err != nil {
					logger.Log.Errorf("notification sweeper: %v", err)
					continue
				}
				if deleted > 0 {
					logger.Log.Infof("notification sweeper: purged %d expired notifications", deleted)
				}
			}
		}
	})
}

// deliver pushes a freshly created notification over the side channels.
func (s *NotificationService) deliver(ctx context.Context, n *models.Notification) {
	s.invalidate(ctx, n.UserID)

	if s.pusher != nil {
		if err := s.pusher.PushToUser(n.UserID, "notification", n); err != nil {
			logger.Log.Warnf("notification service: ws push for %s: %v", n.UserID, err)
		}
	}

	if s.mailer != nil && n.Priority == models.NotificationPriorityHigh && s.users != nil {
		user, err := s.users.GetByID(ctx, n.UserID)
		if err != nil {
			logger.Log.Warnf("notification service: email lookup for %s: %v", n.UserID, err)
			return
		}
		if err := s.mailer.EnqueueNotificationEmail(n.UserID.String(), n.ID.String(), n.Topic, user.Email, n.Title, n.Body); err != nil {
			logger.Log.Warnf("notification service: email enqueue for %s: %v", n.UserID, err)
		}
	}
}

func (s *NotificationService) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache != nil {
		s.cache.InvalidateUnreadCount(ctx, userID)
	}
}
