package service

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/logger"
)

const unreadCountTTL = 5 * time.Minute

// CacheService caches hot per-user counters in Redis. A nil client turns
// every operation into a miss, so the platform runs without Redis.
type CacheService struct {
	client *redis.Client
}

func NewCacheService(client *redis.Client) *CacheService {
	return &CacheService{client: client}
}

func unreadKey(userID uuid.UUID) string {
	return "notifications:unread:" + userID.String()
}

// GetUnreadCount returns the cached unread counter, if present.
func (cs *CacheService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, bool) {
	if cs.client == nil {
		return 0, false
	}

	raw, err := cs.client.Get(ctx, unreadKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warnf("cache: get unread count: %v", err)
		}
		return 0, false
	}

	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return count, true
}

// SetUnreadCount stores the unread counter.
func (cs *CacheService) SetUnreadCount(ctx context.Context, userID uuid.UUID, count int64) {
	if cs.client == nil {
		return
	}
	if err := cs.client.Set(ctx, unreadKey(userID), count, unreadCountTTL).Err(); err != nil {
		logger.Log.Warnf("cache: set unread count: %v", err)
	}
}

// InvalidateUnreadCount drops the cached counter after any mutation that
// could change it.
func (cs *CacheService) InvalidateUnreadCount(ctx context.Context, userID uuid.UUID) {
	if cs.client == nil {
		return
	}
	if err := cs.client.Del(ctx, unreadKey(userID)).Err(); err != nil {
		logger.Log.Warnf("cache: invalidate unread count: %v", err)
	}
}
