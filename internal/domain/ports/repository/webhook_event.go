package repository

import "context"

// WebhookEventStore remembers gateway event ids that were already applied.
// It only short-circuits redeliveries; callers must stay correct without it.
type WebhookEventStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}
