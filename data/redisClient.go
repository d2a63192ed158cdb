package data

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 5 * time.Second

// NewRedisClient panics when the first ping fails, like NewPostgresClient.
func NewRedisClient(ctx context.Context, cfg *config.Config) *redis.Client {
	addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Error("Redis unreachable", slog.String("addr", addr), slog.String("err", err.Error()))
		_ = client.Close()
		panic(err)
	}
	slog.Info("Redis connected", slog.String("addr", addr), slog.Int("db", cfg.Redis.DB))

	return client
}
