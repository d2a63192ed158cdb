package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/KotFed0t/sp500_loader/internal/converter/dbConverter"
	"github.com/KotFed0t/sp500_loader/internal/model"
	"github.com/KotFed0t/sp500_loader/internal/scheduler"
	"github.com/KotFed0t/sp500_loader/internal/seriesAssembler"
	"github.com/KotFed0t/sp500_loader/internal/service"
	"github.com/KotFed0t/sp500_loader/utils"
	"github.com/spf13/cobra"
)

var (
	pretty    bool
	interval  string
	symbolCap int
	collect   bool
	symbol    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "sp500",
		Short:         "Load S&P 500 constituents and their price history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	rootCmd.PersistentFlags().StringVar(&interval, "interval", "", "History range, overrides HISTORY_INTERVAL")
	rootCmd.PersistentFlags().IntVar(&symbolCap, "cap", 0, "Symbol cap, overrides SYMBOL_CAP")
	rootCmd.PersistentFlags().BoolVar(&collect, "collect", false, "Keep going when a symbol fails")

	storedCmd := &cobra.Command{Use: "stored", Short: "Print stored constituents, or stored history of --symbol", Args: cobra.NoArgs, RunE: withApp(runStored)}
	storedCmd.Flags().StringVar(&symbol, "symbol", "", "Symbol to print stored history for")

	rootCmd.AddCommand(
		storedCmd,
		&cobra.Command{Use: "tickers", Short: "Print the constituents table as JSON", Args: cobra.NoArgs, RunE: withApp(runTickers)},
		&cobra.Command{Use: "history", Short: "Print price history of the capped symbols as JSON", Args: cobra.NoArgs, RunE: withApp(runHistory)},
		&cobra.Command{Use: "export", Short: "Run one export: store, build the report and deliver it", Args: cobra.NoArgs, RunE: withApp(runExport)},
		&cobra.Command{Use: "serve", Short: "Export periodically until interrupted", Args: cobra.NoArgs, RunE: withApp(runServe)},
		&cobra.Command{Use: "flush-cache", Short: "Drop cached price history", Args: cobra.NoArgs, RunE: withApp(runFlushCache)},
	)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if interval != "" {
		cfg.History.Interval = interval
	}
	if symbolCap > 0 {
		cfg.History.SymbolCap = symbolCap
	}
	if collect {
		cfg.History.FailurePolicy = config.FailurePolicyCollect
	}
	return cfg, cfg.Validate()
}

// withApp loads config, sets up logging and wires the app around a command body.
func withApp(run func(ctx context.Context, a *app, out io.Writer) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		setupLogger(cfg)
		slog.Debug("config", slog.Any("cfg", cfg))

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		ctx = utils.CreateCtxWithRqID(ctx)

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		return run(ctx, a, cmd.OutOrStdout())
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func runTickers(ctx context.Context, a *app, out io.Writer) error {
	tickers, err := a.sp500.GetTickersInfo(ctx)
	if err != nil {
		return err
	}
	return writeJSON(out, tickers)
}

func runHistory(ctx context.Context, a *app, out io.Writer) error {
	_, history, err := a.sp500.GetSP500History(ctx)
	var batchErr *service.BatchError
	if err != nil && !errors.As(err, &batchErr) {
		return err
	}

	if writeErr := writeJSON(out, struct {
		History map[string]model.PriceTable `json:"history"`
		Failed  []string                    `json:"failed,omitempty"`
	}{History: history, Failed: failedSymbols(batchErr)}); writeErr != nil {
		return writeErr
	}

	return err
}

func failedSymbols(batchErr *service.BatchError) []string {
	if batchErr == nil {
		return nil
	}
	return batchErr.Symbols()
}

func runExport(ctx context.Context, a *app, out io.Writer) error {
	res, err := a.exporter.Export(ctx)
	if res.Path != "" {
		fmt.Fprintln(out, res.Path)
	}
	return err
}

func runFlushCache(ctx context.Context, a *app, _ io.Writer) error {
	return a.cache.FlushHistory(ctx)
}

func runStored(ctx context.Context, a *app, out io.Writer) error {
	if a.pg == nil {
		return errors.New("postgres is disabled, set PG_ENABLED=true")
	}

	if symbol == "" {
		constituents, err := a.pg.GetConstituents(ctx)
		if err != nil {
			return err
		}
		return writeJSON(out, constituents)
	}

	dbBars, err := a.pg.GetPriceBars(ctx, symbol)
	if err != nil {
		return err
	}
	bars := make([]model.PriceBar, 0, len(dbBars))
	for _, dbBar := range dbBars {
		bars = append(bars, dbConverter.ConvertPriceBar(dbBar))
	}
	return writeJSON(out, seriesAssembler.BuildPriceTable(bars))
}

func runServe(ctx context.Context, a *app, _ io.Writer) error {
	if a.cfg.MetricsAddr != "" {
		srv := a.metrics.StartServer(a.cfg.MetricsAddr)
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	sched, err := scheduler.New()
	if err != nil {
		return err
	}
	export := func(ctx context.Context) error {
		_, err := a.exporter.Export(ctx)
		return err
	}
	if err := scheduleExport(sched, a.cfg.Jobs, export); err != nil {
		return err
	}
	if a.cfg.GoogleDrive.Enabled {
		if err := sched.NewIntervalJob("delete old reports", a.exporter.CleanupStorage, a.cfg.GoogleDrive.FileTTL, false); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	if a.bot != nil && a.cfg.Telegram.Commands {
		a.bot.Start(a.exporter)
		defer a.bot.Stop()
	}

	slog.Info("serving", slog.Duration("exportInterval", a.cfg.Jobs.ExportInterval), slog.String("exportCron", a.cfg.Jobs.ExportCron))

	// Waiting interruption signal
	<-ctx.Done()
	slog.Info("shutting down")

	return nil
}

func scheduleExport(sched *scheduler.Scheduler, jobs config.Jobs, export func(ctx context.Context) error) error {
	const name = "export sp500 history"
	if jobs.ExportCron != "" {
		return sched.NewCrontabJob(name, export, jobs.ExportCron, jobs.ExportStartImmediately)
	}
	return sched.NewIntervalJob(name, export, jobs.ExportInterval, jobs.ExportStartImmediately)
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
