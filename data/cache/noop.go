package cache

import (
	"context"

	"github.com/KotFed0t/sp500_loader/internal/model"
)

// NoopCache is used when redis is disabled: every lookup misses, every write is dropped.
type NoopCache struct{}

func NewNoopCache() NoopCache {
	return NoopCache{}
}

func (NoopCache) GetPage(context.Context, string) (string, error) {
	return "", ErrNotFound
}

func (NoopCache) SetPage(context.Context, string, string) error {
	return nil
}

func (NoopCache) GetHistory(context.Context, string, string) ([]model.PriceBar, error) {
	return nil, ErrNotFound
}

func (NoopCache) SetHistory(context.Context, string, string, []model.PriceBar) error {
	return nil
}

func (NoopCache) FlushHistory(context.Context) error {
	return nil
}
