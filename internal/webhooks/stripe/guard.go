package stripewebhook

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
	pkgredis "github.com/gathergrid/gathergrid-backend/pkg/redis"
)

const guardScope = "webhook|stripe"

// IdempotencyGuard deduplicates provider event deliveries. Stripe retries
// webhooks until acknowledged, so the same event id can arrive more than
// once; the first delivery claims a redis key and later ones are skipped.
type IdempotencyGuard struct {
	store pkgredis.IdempotencyStore
	ttl   time.Duration
}

// NewIdempotencyGuard builds a guard over the shared redis client.
func NewIdempotencyGuard(store pkgredis.IdempotencyStore, ttl time.Duration) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("idempotency ttl must be positive")
	}
	return &IdempotencyGuard{store: store, ttl: ttl}, nil
}

// Claim attempts to mark the event id as processed. It returns true when the
// caller owns the first delivery and should process the event.
func (g *IdempotencyGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	key := g.store.IdempotencyKey(guardScope, eventID)
	claimed, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim webhook event")
	}
	return claimed, nil
}

// Release frees a claimed event id so the provider's retry can reprocess it.
// Used when processing fails after the claim.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(guardScope, eventID))
}
