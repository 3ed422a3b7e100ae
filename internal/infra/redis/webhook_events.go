package redis

import (
	"context"
	"time"

	"saas-billing/internal/domain/ports/repository"
)

const (
	webhookEventPrefix = "webhook:event:"
	// DefaultWebhookEventTTL covers the gateway's redelivery window.
	DefaultWebhookEventTTL = 48 * time.Hour
)

var _ repository.WebhookEventStore = (*WebhookEventStore)(nil)

// WebhookEventStore remembers processed gateway event ids in Redis.
type WebhookEventStore struct {
	cache RedisClient
	ttl   time.Duration
}

func NewWebhookEventStore(cache RedisClient, ttl time.Duration) *WebhookEventStore {
	if ttl <= 0 {
		ttl = DefaultWebhookEventTTL
	}
	return &WebhookEventStore{cache: cache, ttl: ttl}
}

func (s *WebhookEventStore) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	return s.cache.Exists(ctx, webhookEventPrefix+eventID)
}

func (s *WebhookEventStore) Remember(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	_, err := s.cache.SetNX(ctx, webhookEventPrefix+eventID, time.Now().UTC().Format(time.RFC3339), s.ttl)
	return err
}
