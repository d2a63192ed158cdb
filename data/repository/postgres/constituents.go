package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KotFed0t/sp500_loader/internal/model/dbModel"
	"github.com/KotFed0t/sp500_loader/utils"
)

const constituentParams = 5

// SaveConstituents upserts the list and removes symbols that left the index.
func (p *Postgres) SaveConstituents(ctx context.Context, constituents []dbModel.Constituent) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.SaveConstituents"

	slog.Debug("SaveConstituents start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(constituents)))
	defer func() {
		if err != nil {
			slog.Error("SaveConstituents failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SaveConstituents completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	if len(constituents) == 0 {
		return nil
	}

	sb := strings.Builder{}
	args := make([]any, 0, len(constituents)*constituentParams)
	symbols := make([]string, 0, len(constituents))

	sb.WriteString(`INSERT INTO constituents (symbol, security, sector, raw, updated_at) VALUES `)

	for i, c := range constituents {
		args = append(args, c.Symbol, c.Security, c.Sector, string(c.Raw), c.UpdatedAt)
		symbols = append(symbols, c.Symbol)

		start := i*constituentParams + 1
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d::jsonb, $%d)",
			start, start+1, start+2, start+3, start+4,
		))

		if i < len(constituents)-1 {
			sb.WriteString(",")
		}
	}

	sb.WriteString(`
		ON CONFLICT (symbol) DO UPDATE SET
			security = EXCLUDED.security,
			sector = EXCLUDED.sector,
			raw = EXCLUDED.raw,
			updated_at = EXCLUDED.updated_at;
	`)

	q := p.txOrDb(ctx)

	if _, err = q.ExecContext(ctx, sb.String(), args...); err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `DELETE FROM constituents WHERE NOT (symbol = ANY($1))`, symbols)
	return err
}

func (p *Postgres) GetConstituents(ctx context.Context) (constituents []dbModel.Constituent, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT symbol, security, sector, raw, updated_at FROM constituents ORDER BY symbol`

	slog.Debug("GetConstituents start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetConstituents failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetConstituents completed", slog.String("rqID", rqID))
		}
	}()

	err = p.txOrDb(ctx).SelectContext(ctx, &constituents, query)
	if err != nil {
		return nil, err
	}

	return constituents, nil
}
