package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xxiimcha/spcc-backend-sub000/pkg/config"
)

// Enabled reports whether a Redis host was configured.
func Enabled(cfg config.RedisConfig) bool {
	return cfg.Host != ""
}

// NewRedis returns a connected Redis client. Callers should check Enabled first.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !Enabled(cfg) {
		return nil, fmt.Errorf("redis host is not configured")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}
