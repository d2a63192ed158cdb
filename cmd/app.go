package main

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/KotFed0t/sp500_loader/data"
	"github.com/KotFed0t/sp500_loader/data/cache"
	"github.com/KotFed0t/sp500_loader/data/repository/postgres"
	"github.com/KotFed0t/sp500_loader/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/sp500_loader/internal/externalApi/wikiApi"
	"github.com/KotFed0t/sp500_loader/internal/externalApi/yahooApi"
	"github.com/KotFed0t/sp500_loader/internal/metrics"
	"github.com/KotFed0t/sp500_loader/internal/reportGenerator/xslsxGenerator"
	"github.com/KotFed0t/sp500_loader/internal/service/exportService"
	"github.com/KotFed0t/sp500_loader/internal/service/sp500Service"
	"github.com/KotFed0t/sp500_loader/internal/tgbot"
)

type appCache interface {
	sp500Service.Cache
	FlushHistory(ctx context.Context) error
}

// app holds the wired services and the resources that must be released on exit.
type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	cache    appCache
	sp500    *sp500Service.Sp500Service
	exporter *exportService.ExportService
	bot      *tgbot.TGBot
	pg       *postgres.Postgres
	closers  []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	a.cache = cache.NewNoopCache()
	if cfg.Redis.Enabled {
		redisClient := data.NewRedisClient(ctx, cfg)
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		a.cache = cache.NewRedisCache(redisClient, cfg)
	}

	a.sp500 = sp500Service.New(
		sp500Service.OptionsFromConfig(cfg),
		a.cache,
		wikiApi.New(cfg, a.metrics),
		yahooApi.New(cfg, a.metrics),
		a.metrics,
	)

	// optional sinks stay nil interfaces when disabled
	var repo exportService.Repository
	if cfg.Postgres.Enabled {
		pgClient := data.NewPostgresClient(ctx, cfg)
		a.closers = append(a.closers, func() { _ = pgClient.Close() })
		a.pg = postgres.NewPostgres(cfg, pgClient)
		repo = a.pg
	}

	var storage exportService.CloudStorage
	if cfg.GoogleDrive.Enabled {
		drive, err := googleDriveApi.New(ctx, cfg)
		if err != nil {
			a.close()
			return nil, err
		}
		storage = drive
	}

	var notifier exportService.Notifier
	if cfg.Telegram.Enabled {
		bot, err := tgbot.New(cfg)
		if err != nil {
			a.close()
			return nil, err
		}
		a.bot = bot
		notifier = bot
	}

	a.exporter = exportService.New(cfg, a.sp500, repo, xslsxGenerator.New(), storage, notifier, a.metrics)

	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	slog.Debug("app resources released")
}
