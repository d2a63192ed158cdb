package yahooApi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/KotFed0t/sp500_loader/internal/externalApi"
	"github.com/KotFed0t/sp500_loader/internal/metrics"
	"github.com/KotFed0t/sp500_loader/internal/model"
	"github.com/KotFed0t/sp500_loader/internal/model/yahooModel"
	"github.com/KotFed0t/sp500_loader/utils"
	"github.com/go-resty/resty/v2"
)

const (
	sourceName  = "yahoo chart"
	barInterval = "1d"
)

type YahooApi struct {
	client  *resty.Client
	metrics *metrics.Metrics
}

func New(cfg *config.Config, m *metrics.Metrics) *YahooApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.YahooApi.Url).
		SetHeader("User-Agent", cfg.API.UserAgent)
	return &YahooApi{client: client, metrics: m}
}

// GetHistory returns daily bars for symbol over the given range ("10y", "1y", "max", ...)
// in the order the API sent them.
func (a *YahooApi) GetHistory(ctx context.Context, symbol, interval string) ([]model.PriceBar, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "YahooApi.GetHistory"

	slog.Debug("GetHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("interval", interval))

	start := time.Now()
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetPathParam("symbol", requestSymbol(symbol)).
		SetQueryParams(map[string]string{
			"range":          interval,
			"interval":       barInterval,
			"includePrePost": "false",
		}).
		Get("/v8/finance/chart/{symbol}")
	a.metrics.ObserveFetch(sourceName, start, err)

	if err != nil {
		slog.Error("error while dialing YahooApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, &externalApi.FetchError{Source: sourceName, Symbol: symbol, Err: err}
	}

	rawChart := yahooModel.ChartResponse{}
	unmarshalErr := json.Unmarshal(resp.Body(), &rawChart)

	if resp.IsError() {
		a.metrics.CountFetchError(sourceName)
		cause := externalApi.ErrUnexpectedCode
		if resp.StatusCode() == http.StatusNotFound || (unmarshalErr == nil && isNotFound(rawChart.Chart.Error)) {
			cause = externalApi.ErrNotFound
		}
		slog.Error("YahooApi responded with error", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()), slog.String("symbol", symbol))
		return nil, &externalApi.FetchError{Source: sourceName, Symbol: symbol, StatusCode: resp.StatusCode(), Err: cause}
	}

	if unmarshalErr != nil {
		a.metrics.CountFetchError(sourceName)
		slog.Error("can't unmarshall response into yahooModel.ChartResponse", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", unmarshalErr.Error()))
		return nil, &externalApi.FetchError{Source: sourceName, Symbol: symbol, StatusCode: resp.StatusCode(), Err: unmarshalErr}
	}

	bars, err := parseChart(rawChart)
	if err != nil {
		a.metrics.CountFetchError(sourceName)
		slog.Error("can't parse raw chart", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, &externalApi.FetchError{Source: sourceName, Symbol: symbol, StatusCode: resp.StatusCode(), Err: err}
	}

	slog.Debug("GetHistory complete", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.Int("bars", len(bars)))

	return bars, nil
}

// requestSymbol converts share-class notation (BRK.B) into the dashed form Yahoo expects (BRK-B).
func requestSymbol(symbol string) string {
	return strings.ReplaceAll(strings.TrimSpace(symbol), ".", "-")
}

func isNotFound(chartErr *yahooModel.ChartError) bool {
	return chartErr != nil && strings.EqualFold(chartErr.Code, "Not Found")
}

func parseChart(raw yahooModel.ChartResponse) ([]model.PriceBar, error) {
	if raw.Chart.Error != nil {
		if isNotFound(raw.Chart.Error) {
			return nil, externalApi.ErrNotFound
		}
		return nil, fmt.Errorf("chart error %s: %s", raw.Chart.Error.Code, raw.Chart.Error.Description)
	}

	if len(raw.Chart.Result) == 0 {
		return nil, externalApi.ErrEmptyResponse
	}

	result := raw.Chart.Result[0]
	if len(result.Timestamp) == 0 {
		return []model.PriceBar{}, nil
	}

	if len(result.Indicators.Quote) == 0 {
		return nil, errors.New("chart has timestamps but no quote")
	}

	quote := result.Indicators.Quote[0]
	n := len(result.Timestamp)
	if len(quote.Open) != n || len(quote.High) != n || len(quote.Low) != n || len(quote.Close) != n {
		return nil, fmt.Errorf("quote lengths don't match %d timestamps", n)
	}

	bars := make([]model.PriceBar, 0, n)
	for i, ts := range result.Timestamp {
		// days without trades come back as nulls
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}

		bar := model.PriceBar{
			Timestamp: ts * 1000,
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume := *quote.Volume[i]
			bar.Volume = &volume
		}

		bars = append(bars, bar)
	}

	return bars, nil
}
