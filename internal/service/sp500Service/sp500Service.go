package sp500Service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/KotFed0t/sp500_loader/internal/metrics"
	"github.com/KotFed0t/sp500_loader/internal/model"
	"github.com/KotFed0t/sp500_loader/internal/seriesAssembler"
	"github.com/KotFed0t/sp500_loader/internal/service"
	"github.com/KotFed0t/sp500_loader/internal/tableExtractor"
	"github.com/KotFed0t/sp500_loader/utils"
	"golang.org/x/sync/errgroup"
)

type PageSource interface {
	GetConstituentsPage(ctx context.Context) (string, error)
}

type HistorySource interface {
	GetHistory(ctx context.Context, symbol, interval string) ([]model.PriceBar, error)
}

type Cache interface {
	GetPage(ctx context.Context, url string) (string, error)
	SetPage(ctx context.Context, url, page string) error
	GetHistory(ctx context.Context, symbol, interval string) ([]model.PriceBar, error)
	SetHistory(ctx context.Context, symbol, interval string, bars []model.PriceBar) error
}

type Options struct {
	SourceUrl        string
	SymbolColumn     string
	Interval         string
	SymbolCap        int
	FetchConcurrency int
	CollectFailures  bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SourceUrl:        cfg.Source.Url,
		SymbolColumn:     cfg.Source.SymbolColumn,
		Interval:         cfg.History.Interval,
		SymbolCap:        cfg.History.SymbolCap,
		FetchConcurrency: cfg.History.FetchConcurrency,
		CollectFailures:  cfg.History.FailurePolicy == config.FailurePolicyCollect,
	}
}

type Sp500Service struct {
	opts    Options
	cache   Cache
	pages   PageSource
	history HistorySource
	metrics *metrics.Metrics
}

func New(opts Options, cache Cache, pages PageSource, history HistorySource, m *metrics.Metrics) *Sp500Service {
	if opts.FetchConcurrency < 1 {
		opts.FetchConcurrency = 1
	}
	return &Sp500Service{
		opts:    opts,
		cache:   cache,
		pages:   pages,
		history: history,
		metrics: m,
	}
}

// GetTickersInfo downloads the constituents page and returns its first table column by column.
func (s *Sp500Service) GetTickersInfo(ctx context.Context) (model.Table, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Sp500Service.GetTickersInfo"

	slog.Debug("GetTickersInfo start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("GetTickersInfo finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	page, err := s.getPage(ctx)
	if err != nil {
		return model.Table{}, err
	}

	grid, err := tableExtractor.Extract(page)
	if err != nil {
		slog.Error("got error from tableExtractor.Extract", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Table{}, err
	}

	if grid.IsEmpty() {
		slog.Error("no table on constituents page", slog.String("rqID", rqID), slog.String("op", op))
		return model.Table{}, &service.ParseError{Op: op, Err: service.ErrNoTable}
	}

	table, err := seriesAssembler.Assemble(grid)
	if err != nil {
		slog.Error("got error from seriesAssembler.Assemble", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Table{}, err
	}

	if _, ok := table.Column(s.opts.SymbolColumn); !ok {
		slog.Error("symbol column not found", slog.String("rqID", rqID), slog.String("op", op), slog.String("column", s.opts.SymbolColumn))
		return model.Table{}, &service.SchemaError{Column: s.opts.SymbolColumn, Available: table.Names()}
	}

	slog.Info("constituents table assembled", slog.String("rqID", rqID), slog.String("op", op), slog.Int("rows", table.Len()), slog.Int("columns", table.Width()))

	return table, nil
}

func (s *Sp500Service) getPage(ctx context.Context) (string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Sp500Service.getPage"

	page, err := s.cache.GetPage(ctx, s.opts.SourceUrl)
	if err == nil {
		s.metrics.CountCache("page", true)
		return page, nil
	}
	s.metrics.CountCache("page", false)

	slog.Debug("can't get page from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))

	page, err = s.pages.GetConstituentsPage(ctx)
	if err != nil {
		slog.Error("can't get constituents page", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	if err := s.cache.SetPage(ctx, s.opts.SourceUrl, page); err != nil {
		slog.Warn("can't save page to cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return page, nil
}

// Symbols returns the symbols to fetch: non-empty, first occurrence only, at most SymbolCap, in table order.
func (s *Sp500Service) Symbols(tickers model.Table) ([]string, error) {
	column, ok := tickers.Column(s.opts.SymbolColumn)
	if !ok {
		return nil, &service.SchemaError{Column: s.opts.SymbolColumn, Available: tickers.Names()}
	}

	symbols := make([]string, 0, min(len(column), s.opts.SymbolCap))
	seen := make(map[string]struct{}, cap(symbols))
	for _, symbol := range column {
		if len(symbols) == s.opts.SymbolCap {
			break
		}
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}

	return symbols, nil
}

// GetPriceHistory fetches and assembles the price table of every capped symbol.
//
// By default the first failure cancels the batch and is returned alone. With CollectFailures
// every symbol is attempted and failures come back as *service.BatchError next to the successes.
func (s *Sp500Service) GetPriceHistory(ctx context.Context, tickers model.Table) (map[string]model.PriceTable, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Sp500Service.GetPriceHistory"

	symbols, err := s.Symbols(tickers)
	if err != nil {
		slog.Error("can't select symbols", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	slog.Debug("GetPriceHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("symbols", len(symbols)), slog.Int("concurrency", s.opts.FetchConcurrency))
	defer func() {
		slog.Debug("GetPriceHistory finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	// one slot per symbol, merged after the pool drains
	tables := make([]model.PriceTable, len(symbols))
	failures := make([]error, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.FetchConcurrency)

	for i, symbol := range symbols {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// a slot may free up only because the batch already aborted
			if err := gctx.Err(); err != nil {
				return err
			}
			table, err := s.getSymbolHistory(gctx, symbol)
			if !errors.Is(err, context.Canceled) {
				s.metrics.CountSymbol(err)
			}
			if err != nil {
				if !s.opts.CollectFailures {
					return err
				}
				failures[i] = err
				return nil
			}
			tables[i] = table
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("price history batch aborted", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := make(map[string]model.PriceTable, len(symbols))
	batchErr := &service.BatchError{Failures: map[string]error{}}
	for i, symbol := range symbols {
		if failures[i] != nil {
			batchErr.Failures[symbol] = failures[i]
			continue
		}
		res[symbol] = tables[i]
	}

	if len(batchErr.Failures) > 0 {
		slog.Warn("price history finished with failures", slog.String("rqID", rqID), slog.String("op", op), slog.Any("failed", batchErr.Symbols()))
		return res, batchErr
	}

	return res, nil
}

func (s *Sp500Service) getSymbolHistory(ctx context.Context, symbol string) (model.PriceTable, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Sp500Service.getSymbolHistory"

	bars, err := s.cache.GetHistory(ctx, symbol, s.opts.Interval)
	if err == nil {
		s.metrics.CountCache("history", true)
		return seriesAssembler.BuildPriceTable(bars), nil
	}
	s.metrics.CountCache("history", false)

	bars, err = s.history.GetHistory(ctx, symbol, s.opts.Interval)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("can't get price history", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		}
		return model.PriceTable{}, err
	}

	if err := s.cache.SetHistory(ctx, symbol, s.opts.Interval, bars); err != nil {
		slog.Warn("can't save history to cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
	}

	return seriesAssembler.BuildPriceTable(bars), nil
}

// GetSP500History returns the constituents table and the price tables of its first symbols.
// A *service.BatchError comes back together with both results.
func (s *Sp500Service) GetSP500History(ctx context.Context) (model.Table, map[string]model.PriceTable, error) {
	tickers, err := s.GetTickersInfo(ctx)
	if err != nil {
		return model.Table{}, nil, err
	}

	history, err := s.GetPriceHistory(ctx, tickers)
	if err != nil {
		var batchErr *service.BatchError
		if errors.As(err, &batchErr) {
			return tickers, history, err
		}
		return model.Table{}, nil, err
	}

	return tickers, history, nil
}
