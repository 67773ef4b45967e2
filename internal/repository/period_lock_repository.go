package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseLockScript deletes the key only while it still holds the caller's token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// PeriodLockRepository implements a token-guarded Redis lock per planning period.
type PeriodLockRepository struct {
	client *redis.Client
}

// NewPeriodLockRepository constructs the repository.
func NewPeriodLockRepository(client *redis.Client) *PeriodLockRepository {
	return &PeriodLockRepository{client: client}
}

// Acquire sets key to token when absent. It reports false when another holder owns the key.
func (r *PeriodLockRepository) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is not configured")
	}
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Release removes key if it is still held by token.
func (r *PeriodLockRepository) Release(ctx context.Context, key, token string) error {
	if r.client == nil {
		return nil
	}
	if err := releaseLockScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}
