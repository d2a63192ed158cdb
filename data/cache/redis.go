package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/KotFed0t/sp500_loader/internal/model"
	"github.com/KotFed0t/sp500_loader/utils"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("error not found in cache")

const (
	pageKeyPrefix    = "sp500:page:"
	historyKeyPrefix = "sp500:history:"
)

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func pageKey(url string) string {
	return pageKeyPrefix + url
}

func historyKey(symbol, interval string) string {
	return fmt.Sprintf("%s%s:%s", historyKeyPrefix, symbol, interval)
}

func (r *RedisCache) SetPage(ctx context.Context, url, page string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.SetPage"

	slog.Debug("SetPage start", slog.String("rqID", rqID), slog.String("op", op), slog.String("url", url))

	err := r.redis.Set(ctx, pageKey(url), page, r.cfg.Cache.PageExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetPage completed", slog.String("rqID", rqID), slog.String("op", op))

	return nil
}

func (r *RedisCache) GetPage(ctx context.Context, url string) (string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.GetPage"

	slog.Debug("GetPage start", slog.String("rqID", rqID), slog.String("op", op), slog.String("url", url))

	res, err := r.redis.Get(ctx, pageKey(url)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	slog.Debug("GetPage finished", slog.String("rqID", rqID), slog.String("op", op))

	return res, nil
}

type cachedBar struct {
	Timestamp int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    *uint64 `json:"v,omitempty"`
}

func (r *RedisCache) SetHistory(ctx context.Context, symbol, interval string, bars []model.PriceBar) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.SetHistory"

	slog.Debug("SetHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	toCache := make([]cachedBar, 0, len(bars))
	for _, bar := range bars {
		toCache = append(toCache, cachedBar(bar))
	}

	barsJson, err := json.Marshal(toCache)
	if err != nil {
		slog.Error("can't marshall bars in SetHistory", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return errors.New("can't marshall bars")
	}

	err = r.redis.Set(ctx, historyKey(symbol, interval), barsJson, r.cfg.Cache.HistoryExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetHistory completed", slog.String("rqID", rqID), slog.String("op", op))

	return nil
}

func (r *RedisCache) GetHistory(ctx context.Context, symbol, interval string) ([]model.PriceBar, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.GetHistory"

	slog.Debug("GetHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	res, err := r.redis.Get(ctx, historyKey(symbol, interval)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	cached := []cachedBar{}
	err = json.Unmarshal(res, &cached)
	if err != nil {
		slog.Error(
			"can't unmarshall bars in GetHistory",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.String("err", err.Error()),
			slog.String("symbol", symbol),
		)
		return nil, errors.New("can't unmarshall bars")
	}

	bars := make([]model.PriceBar, 0, len(cached))
	for _, bar := range cached {
		bars = append(bars, model.PriceBar(bar))
	}

	slog.Debug("GetHistory finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("bars", len(bars)))

	return bars, nil
}

// FlushHistory drops every cached history entry.
func (r *RedisCache) FlushHistory(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.FlushHistory"

	var keys []string
	iter := r.redis.Scan(ctx, 0, historyKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.Error("failed on redis.Scan", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		slog.Error("failed on redis.Del", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("FlushHistory completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("keys", len(keys)))

	return nil
}
