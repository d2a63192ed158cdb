package tgbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/KotFed0t/sp500_loader/internal/service"
	"github.com/KotFed0t/sp500_loader/internal/service/exportService"
	customMW "github.com/KotFed0t/sp500_loader/internal/transport/telegram/middleware"
	"github.com/KotFed0t/sp500_loader/utils"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type Exporter interface {
	Export(ctx context.Context) (exportService.Result, error)
}

// TGBot delivers reports to the configured chat and optionally answers /export there.
type TGBot struct {
	bot    *tele.Bot
	chatID int64
}

func New(cfg *config.Config) (*TGBot, error) {
	settings := tele.Settings{
		URL:    cfg.Telegram.ApiUrl,
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		return nil, err
	}

	return &TGBot{bot: b, chatID: cfg.Telegram.ChatID}, nil
}

// SendReport sends the report file with caption to the configured chat.
func (b *TGBot) SendReport(ctx context.Context, report io.Reader, filename, caption string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TGBot.SendReport"

	slog.Debug("SendReport start", slog.String("rqID", rqID), slog.String("op", op), slog.String("filename", filename))

	doc := &tele.Document{
		File:     tele.FromReader(report),
		FileName: filename,
		Caption:  caption,
	}

	if _, err := b.bot.Send(tele.ChatID(b.chatID), doc); err != nil {
		slog.Error("can't send report", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SendReport completed", slog.String("rqID", rqID), slog.String("op", op))

	return nil
}

// Start begins long polling and serves /export from the configured chat only.
func (b *TGBot) Start(exporter Exporter) {
	b.bot.Use(middleware.Recover(), middleware.Whitelist(b.chatID), customMW.Logger())

	b.bot.Handle("/export", b.exportHandler(exporter))

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) exportHandler(exporter Exporter) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := customMW.Ctx(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		_ = c.Notify(tele.UploadingDocument)

		res, err := exporter.Export(ctx)
		var batchErr *service.BatchError
		if err != nil && !errors.As(err, &batchErr) {
			slog.Error("export from chat failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send(fmt.Sprintf("export failed: %s", err))
		}

		return c.Send(summary(res))
	}
}

func summary(res exportService.Result) string {
	msg := fmt.Sprintf("export done: %d symbols, saved to %s", res.Symbols, res.Path)
	if len(res.Failed) > 0 {
		msg += fmt.Sprintf("\nfailed: %v", res.Failed)
	}
	return msg
}
