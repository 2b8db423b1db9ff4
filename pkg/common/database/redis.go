package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/config"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/logger"
)

// NewRedis connects the query-result cache. A failed ping is logged but
// not fatal; the caller decides whether to run without a cache.
func NewRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Log.Info("Connected to Redis")
	return client, nil
}
