package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-board/domain"
)

type backend interface {
	GetDocument(ctx context.Context, userID string) (*domain.Document, error)
	SetDocument(ctx context.Context, userID string, doc domain.Document) error
	EnqueueSessionEvent(ctx context.Context, ev domain.SessionEvent) error
}

// Cache wraps a Storage instance with Redis-backed caching for document reads.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) GetDocument(ctx context.Context, userID string) (*domain.Document, error) {
	if doc, ok := c.loadFromCache(ctx, userID); ok {
		return &doc, nil
	}

	doc, err := c.base.GetDocument(ctx, userID)
	if err != nil || doc == nil {
		return doc, err
	}

	c.store(ctx, userID, *doc)
	return doc, nil
}

// SetDocument writes through to the backing storage and evicts the cached copy
// both before and after the write. The second eviction ignores cancellation of
// ctx: once the write has landed the cached copy must not outlive it.
func (c *Cache) SetDocument(ctx context.Context, userID string, doc domain.Document) error {
	c.evict(ctx, userID)
	err := c.base.SetDocument(ctx, userID, doc)
	c.evict(context.WithoutCancel(ctx), userID)
	return err
}

func (c *Cache) EnqueueSessionEvent(ctx context.Context, ev domain.SessionEvent) error {
	return c.base.EnqueueSessionEvent(ctx, ev)
}

func (c *Cache) loadFromCache(ctx context.Context, userID string) (domain.Document, bool) {
	if c.redis == nil {
		return domain.Document{}, false
	}
	data, err := c.redis.Get(ctx, documentCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, documentCacheKey(userID)).Err()
		}
		return domain.Document{}, false
	}
	doc, err := domain.DecodeDocument(data)
	if err != nil {
		_ = c.redis.Del(ctx, documentCacheKey(userID)).Err()
		return domain.Document{}, false
	}
	return doc, true
}

func (c *Cache) store(ctx context.Context, userID string, doc domain.Document) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := domain.EncodeDocument(doc)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, documentCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, documentCacheKey(userID)).Err(); err != nil {
		log.WithError(err).WithField("user", userID).Warn("board cache eviction failed")
	}
}

func documentCacheKey(userID string) string {
	return "board:" + userID
}
