package exportService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/KotFed0t/sp500_loader/internal/converter/dbConverter"
	"github.com/KotFed0t/sp500_loader/internal/metrics"
	"github.com/KotFed0t/sp500_loader/internal/model"
	"github.com/KotFed0t/sp500_loader/internal/model/dbModel"
	"github.com/KotFed0t/sp500_loader/internal/service"
	"github.com/KotFed0t/sp500_loader/utils"
)

type HistoryLoader interface {
	GetSP500History(ctx context.Context) (model.Table, map[string]model.PriceTable, error)
}

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
	SaveConstituents(ctx context.Context, constituents []dbModel.Constituent) error
	SavePriceBars(ctx context.Context, symbol string, bars []dbModel.PriceBar) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, tickers model.Table, history map[string]model.PriceTable) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
	DeleteOldFiles(ctx context.Context) error
}

type Notifier interface {
	SendReport(ctx context.Context, report io.Reader, filename, caption string) error
}

// Result describes one finished export.
type Result struct {
	Path         string
	DownloadLink string
	Symbols      int
	Failed       []string
}

// ExportService runs the full load and fans the result out to the enabled sinks.
// Repository, storage and notifier are optional and skipped when nil.
type ExportService struct {
	cfg             *config.Config
	loader          HistoryLoader
	repo            Repository
	reportGenerator ReportGenerator
	storage         CloudStorage
	notifier        Notifier
	metrics         *metrics.Metrics
	now             func() time.Time
}

func New(
	cfg *config.Config,
	loader HistoryLoader,
	repo Repository,
	reportGenerator ReportGenerator,
	storage CloudStorage,
	notifier Notifier,
	m *metrics.Metrics,
) *ExportService {
	return &ExportService{
		cfg:             cfg,
		loader:          loader,
		repo:            repo,
		reportGenerator: reportGenerator,
		storage:         storage,
		notifier:        notifier,
		metrics:         m,
		now:             time.Now,
	}
}

// Export loads constituents and price history, stores them and writes the report file.
// Partial loads are exported too; the *service.BatchError is returned after the sinks ran.
func (s *ExportService) Export(ctx context.Context) (res Result, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "ExportService.Export"

	slog.Info("Export start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		s.metrics.CountExport(err)
		slog.Info("Export finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("path", res.Path), slog.Int("symbols", res.Symbols))
	}()

	tickers, history, loadErr := s.loader.GetSP500History(ctx)
	var batchErr *service.BatchError
	if loadErr != nil && !errors.As(loadErr, &batchErr) {
		return Result{}, loadErr
	}
	if batchErr != nil {
		res.Failed = batchErr.Symbols()
	}
	res.Symbols = len(history)

	if err = s.persist(ctx, tickers, history); err != nil {
		return res, err
	}

	report, ext, err := s.reportGenerator.Generate(ctx, tickers, history)
	if err != nil {
		slog.Error("can't generate report", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return res, err
	}

	filename := fmt.Sprintf("sp500_%s%s", s.now().UTC().Format("20060102_150405"), ext)

	res.Path, err = s.writeReport(report, filename)
	if err != nil {
		slog.Error("can't write report", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return res, err
	}

	if s.storage != nil {
		res.DownloadLink, err = s.storage.UploadFile(ctx, bytes.NewReader(report), filename)
		if err != nil {
			slog.Error("can't upload report", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return res, err
		}
	}

	if s.notifier != nil {
		if err = s.notifier.SendReport(ctx, bytes.NewReader(report), filename, caption(res)); err != nil {
			slog.Error("can't send report", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return res, err
		}
	}

	return res, loadErr
}

func (s *ExportService) persist(ctx context.Context, tickers model.Table, history map[string]model.PriceTable) error {
	if s.repo == nil {
		return nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "ExportService.persist"

	constituents, err := dbConverter.ConvertConstituents(tickers, s.cfg.Source.SymbolColumn, s.now().UTC())
	if err != nil {
		return err
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.SaveConstituents(ctx, constituents); err != nil {
			return err
		}
		for symbol, table := range history {
			if err := s.repo.SavePriceBars(ctx, symbol, dbConverter.ConvertPriceTable(symbol, table)); err != nil {
				return fmt.Errorf("save %s: %w", symbol, err)
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("can't persist export", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (s *ExportService) writeReport(report []byte, filename string) (string, error) {
	if err := os.MkdirAll(s.cfg.Report.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.cfg.Report.Dir, filename)
	if err := os.WriteFile(path, report, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// CleanupStorage removes expired reports from cloud storage.
func (s *ExportService) CleanupStorage(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	return s.storage.DeleteOldFiles(ctx)
}

func caption(res Result) string {
	msg := fmt.Sprintf("S&P 500 history: %d symbols", res.Symbols)
	if len(res.Failed) > 0 {
		msg += fmt.Sprintf(", failed: %v", res.Failed)
	}
	if res.DownloadLink != "" {
		msg += "\n" + res.DownloadLink
	}
	return msg
}
