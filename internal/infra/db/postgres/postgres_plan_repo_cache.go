package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/infra/metrics"
	red "saas-billing/internal/infra/redis"
)

var _ repository.PricingPlanRepository = (*planRepoCacheDecorator)(nil)

const (
	planKeyPrefix  = "pricing_plan:"
	planListKey    = "pricing_plans:active"
	defaultPlanTTL = time.Hour
)

// planRepoCacheDecorator caches the pricing reference in Redis. Cache failures
// fall through to the database.
type planRepoCacheDecorator struct {
	inner repository.PricingPlanRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewPlanRepoCacheDecorator(inner repository.PricingPlanRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PricingPlanRepository {
	if ttl <= 0 {
		ttl = defaultPlanTTL
	}
	return &planRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logger}
}

func (d *planRepoCacheDecorator) FindActiveByKey(ctx context.Context, tx repository.Tx, planKey string) (*model.PricingPlan, error) {
	key := planKeyPrefix + planKey
	var plan model.PricingPlan
	if d.get(ctx, "plan", key, &plan) {
		return &plan, nil
	}
	p, err := d.inner.FindActiveByKey(ctx, tx, planKey)
	if err != nil {
		return nil, err
	}
	d.set(ctx, key, p)
	return p, nil
}

func (d *planRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PricingPlan, error) {
	var plans []*model.PricingPlan
	if d.get(ctx, "plan_list", planListKey, &plans) {
		return plans, nil
	}
	plans, err := d.inner.ListActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		d.set(ctx, planListKey, plans)
	}
	return plans, nil
}

// Save writes through and drops both the plan and the list entry.
func (d *planRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.PricingPlan) error {
	if err := d.inner.Save(ctx, tx, p); err != nil {
		return err
	}
	if err := d.cache.Del(ctx, planKeyPrefix+p.PlanKey, planListKey); err != nil {
		d.log.Warn().Err(err).Str("plan_key", p.PlanKey).Msg("plan cache invalidation failed")
	}
	return nil
}

func (d *planRepoCacheDecorator) get(ctx context.Context, name, key string, dst any) bool {
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		if json.Unmarshal([]byte(val), dst) == nil {
			metrics.IncCacheRequest(name, "hit")
			return true
		}
		_ = d.cache.Del(ctx, key)
	case !errors.Is(err, red.Nil):
		d.log.Warn().Err(err).Str("key", key).Msg("plan cache read failed")
		metrics.IncCacheRequest(name, "error")
		return false
	}
	metrics.IncCacheRequest(name, "miss")
	return false
}

func (d *planRepoCacheDecorator) set(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("plan cache write failed")
	}
}
