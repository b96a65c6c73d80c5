package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wintera/fleet/pkg/cache"
)

// MailingCache suppresses re-sending to the same user across campaigns
// inside a TTL window. Backed by Redis with the TTL enforced by key
// expiry, so a lookup is a single GET.
type MailingCache interface {
	Seen(ctx context.Context, tenantID string, telegramID int64) (bool, error)
	Mark(ctx context.Context, tenantID string, telegramID int64, ttlDays int) error
}

type mailingCache struct {
	redis *cache.RedisCache
}

func NewMailingCache(redis *cache.RedisCache) MailingCache {
	return &mailingCache{redis: redis}
}

func mailingKey(tenantID string, telegramID int64) string {
	return fmt.Sprintf("mailing:%s:%d", tenantID, telegramID)
}

func (c *mailingCache) Seen(ctx context.Context, tenantID string, telegramID int64) (bool, error) {
	_, err := c.redis.Get(ctx, mailingKey(tenantID, telegramID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *mailingCache) Mark(ctx context.Context, tenantID string, telegramID int64, ttlDays int) error {
	if ttlDays <= 0 {
		return nil
	}
	ttl := time.Duration(ttlDays) * 24 * time.Hour
	return c.redis.Set(ctx, mailingKey(tenantID, telegramID),
		time.Now().UTC().Format(time.RFC3339), ttl)
}
