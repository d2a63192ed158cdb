package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KotFed0t/sp500_loader/data/repository"
	"github.com/KotFed0t/sp500_loader/internal/model/dbModel"
	"github.com/KotFed0t/sp500_loader/utils"
)

const (
	priceBarParams = 7
	// postgres allows 65535 bind parameters per statement
	priceBarBatch = 5000
)

// SavePriceBars upserts the bars of one symbol in batches.
func (p *Postgres) SavePriceBars(ctx context.Context, symbol string, bars []dbModel.PriceBar) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.SavePriceBars"

	slog.Debug("SavePriceBars start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.Int("bars", len(bars)))
	defer func() {
		if err != nil {
			slog.Error("SavePriceBars failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SavePriceBars completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	for from := 0; from < len(bars); from += priceBarBatch {
		batch := bars[from:min(from+priceBarBatch, len(bars))]
		if err = p.savePriceBarsBatch(ctx, batch); err != nil {
			return err
		}
	}

	return nil
}

func (p *Postgres) savePriceBarsBatch(ctx context.Context, bars []dbModel.PriceBar) error {
	sb := strings.Builder{}
	args := make([]any, 0, len(bars)*priceBarParams)

	sb.WriteString(`INSERT INTO price_bars (symbol, ts_ms, open, high, low, close, volume) VALUES `)

	for i, bar := range bars {
		args = append(args, bar.Symbol, bar.Timestamp, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)

		start := i*priceBarParams + 1
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			start, start+1, start+2, start+3, start+4, start+5, start+6,
		))

		if i < len(bars)-1 {
			sb.WriteString(",")
		}
	}

	sb.WriteString(`
		ON CONFLICT (symbol, ts_ms) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume;
	`)

	_, err := p.txOrDb(ctx).ExecContext(ctx, sb.String(), args...)
	return err
}

func (p *Postgres) GetPriceBars(ctx context.Context, symbol string) (bars []dbModel.PriceBar, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT symbol, ts_ms, open, high, low, close, volume
		FROM price_bars
		WHERE symbol = $1
		ORDER BY ts_ms
		`

	slog.Debug("GetPriceBars start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetPriceBars failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPriceBars completed", slog.String("rqID", rqID))
		}
	}()

	rows, err := p.txOrDb(ctx).QueryxContext(ctx, query, symbol)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var bar dbModel.PriceBar
		err = rows.StructScan(&bar)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(bars) == 0 {
		return nil, repository.ErrNotFound
	}

	return bars, nil
}
