// internal/cache/plans.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gymhub.np/internal/models"
)

const plansKey = "plans:all"

// PlanCache keeps the public plan list in Redis.
type PlanCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPlanCache(client *redis.Client, ttl time.Duration) *PlanCache {
	return &PlanCache{client: client, ttl: ttl}
}

// Get reports ok=false on a miss.
func (c *PlanCache) Get(ctx context.Context) ([]models.Plan, bool, error) {
	raw, err := c.client.Get(ctx, plansKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read plan cache: %w", err)
	}
	var plans []models.Plan
	if err := json.Unmarshal(raw, &plans); err != nil {
		return nil, false, fmt.Errorf("decode plan cache: %w", err)
	}
	return plans, true, nil
}

func (c *PlanCache) Set(ctx context.Context, plans []models.Plan) error {
	data, err := json.Marshal(plans)
	if err != nil {
		return fmt.Errorf("encode plan cache: %w", err)
	}
	if err := c.client.Set(ctx, plansKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("write plan cache: %w", err)
	}
	return nil
}

func (c *PlanCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, plansKey).Err(); err != nil {
		return fmt.Errorf("invalidate plan cache: %w", err)
	}
	return nil
}
