package wikiApi

import (
	"context"
	"log/slog"
	"time"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/KotFed0t/sp500_loader/internal/externalApi"
	"github.com/KotFed0t/sp500_loader/internal/metrics"
	"github.com/KotFed0t/sp500_loader/utils"
	"github.com/go-resty/resty/v2"
)

const sourceName = "constituents page"

type WikiApi struct {
	client  *resty.Client
	url     string
	metrics *metrics.Metrics
}

func New(cfg *config.Config, m *metrics.Metrics) *WikiApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetHeader("User-Agent", cfg.API.UserAgent)
	return &WikiApi{client: client, url: cfg.Source.Url, metrics: m}
}

// GetConstituentsPage downloads the raw HTML of the constituents page.
func (a *WikiApi) GetConstituentsPage(ctx context.Context) (string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "WikiApi.GetConstituentsPage"

	slog.Debug("GetConstituentsPage start", slog.String("rqID", rqID), slog.String("op", op), slog.String("url", a.url))

	start := time.Now()
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html").
		Get(a.url)
	a.metrics.ObserveFetch(sourceName, start, err)

	if err != nil {
		slog.Error("error while dialing constituents page", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", &externalApi.FetchError{Source: sourceName, Err: err}
	}

	if resp.IsError() {
		slog.Error(
			"constituents page responded with error",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.Int("status", resp.StatusCode()),
		)
		fetchErr := &externalApi.FetchError{Source: sourceName, StatusCode: resp.StatusCode(), Err: externalApi.ErrUnexpectedCode}
		a.metrics.CountFetchError(sourceName)
		return "", fetchErr
	}

	body := resp.String()
	if body == "" {
		a.metrics.CountFetchError(sourceName)
		return "", &externalApi.FetchError{Source: sourceName, StatusCode: resp.StatusCode(), Err: externalApi.ErrEmptyResponse}
	}

	slog.Debug("GetConstituentsPage complete", slog.String("rqID", rqID), slog.String("op", op), slog.Int("bytes", len(body)))

	return body, nil
}
