package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// Limiter enforces per-workspace token budgets, backed by Redis via
// github.com/vnmchuo/ratelimiter.
type Limiter struct {
	store extratelimit.Limiter
}

func NewLimiter(rdb *redis.Client, defaultTPM int64) *Limiter {
	store := extratelimit.NewRedisStore(rdb,
		extratelimit.WithLimit(int(defaultTPM)),
		extratelimit.WithWindow(time.Minute),
	)
	return &Limiter{store: store}
}

func NewTestLimiter(store extratelimit.Limiter) *Limiter {
	return &Limiter{store: store}
}

// Allow reserves tokens against a workspace's per-minute budget.
func (l *Limiter) Allow(ctx context.Context, workspaceID string, tokens int) (bool, error) {
	key := fmt.Sprintf("ratelimit:workspace:%s", workspaceID)
	res, err := l.store.AllowN(ctx, key, tokens)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func (l *Limiter) Status(ctx context.Context, workspaceID string) (*extratelimit.Result, error) {
	key := fmt.Sprintf("ratelimit:workspace:%s", workspaceID)
	return l.store.Status(ctx, key)
}
