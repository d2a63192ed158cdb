package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/sp500_loader/utils"
	tele "gopkg.in/telebot.v4"
)

const CtxKey = "ctx"

// Logger attaches a request-scoped context to every update and logs its duration.
func Logger() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			now := time.Now()

			ctx := utils.CreateCtxWithRqID(context.Background())
			rqID := utils.GetRequestIDFromCtx(ctx)
			c.Set(CtxKey, ctx)

			slog.Info("start request", slog.String("rqID", rqID), slog.String("text", c.Text()))

			defer func() {
				slog.Info(
					"request finished",
					slog.String("rqID", rqID),
					slog.String("request duration", fmt.Sprintf("%.2fs", time.Since(now).Seconds())),
				)
			}()

			return next(c)
		}
	}
}

// Ctx returns the context stored by Logger, or a fresh one.
func Ctx(c tele.Context) context.Context {
	if ctx, ok := c.Get(CtxKey).(context.Context); ok {
		return ctx
	}
	return utils.CreateCtxWithRqID(context.Background())
}
