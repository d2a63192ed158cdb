package dbConverter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/KotFed0t/sp500_loader/internal/model"
	"github.com/KotFed0t/sp500_loader/internal/model/dbModel"
	"github.com/shopspring/decimal"
)

// column names used by the wikipedia constituents table
const (
	securityColumn = "Security"
	sectorColumn   = "GICS Sector"
)

// ConvertConstituents turns the constituents table into db rows, one per symbol, first occurrence wins.
// The whole row is kept in Raw so columns we don't model survive a page layout change.
func ConvertConstituents(table model.Table, symbolColumn string, updatedAt time.Time) ([]dbModel.Constituent, error) {
	symbols, ok := table.Column(symbolColumn)
	if !ok {
		return nil, fmt.Errorf("column %q not found", symbolColumn)
	}
	securities, _ := table.Column(securityColumn)
	sectors, _ := table.Column(sectorColumn)
	names := table.Names()

	res := make([]dbModel.Constituent, 0, table.Len())
	seen := make(map[string]struct{}, table.Len())
	for r, symbol := range symbols {
		if symbol == "" {
			continue
		}
		// one row per symbol, the upsert can't touch the same key twice
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}

		row := table.Row(r)
		raw := make(map[string]string, len(names))
		for i, name := range names {
			raw[name] = row[i]
		}
		rawJson, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("marshal row %d: %w", r, err)
		}

		c := dbModel.Constituent{
			Symbol:    symbol,
			Raw:       rawJson,
			UpdatedAt: updatedAt,
		}
		if securities != nil {
			c.Security = securities[r]
		}
		if sectors != nil {
			c.Sector = sectors[r]
		}

		res = append(res, c)
	}

	return res, nil
}

func ConvertPriceTable(symbol string, table model.PriceTable) []dbModel.PriceBar {
	res := make([]dbModel.PriceBar, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		res = append(res, dbModel.PriceBar{
			Symbol:    symbol,
			Timestamp: table.Timestamp[i],
			Open:      decimal.NewFromFloat(table.Open[i]),
			High:      decimal.NewFromFloat(table.High[i]),
			Low:       decimal.NewFromFloat(table.Low[i]),
			Close:     decimal.NewFromFloat(table.Close[i]),
			Volume:    int64(table.Volume[i]),
		})
	}
	return res
}

func ConvertPriceBar(dbBar dbModel.PriceBar) model.PriceBar {
	volume := uint64(max(dbBar.Volume, 0))
	return model.PriceBar{
		Timestamp: dbBar.Timestamp,
		Open:      dbBar.Open.InexactFloat64(),
		High:      dbBar.High.InexactFloat64(),
		Low:       dbBar.Low.InexactFloat64(),
		Close:     dbBar.Close.InexactFloat64(),
		Volume:    &volume,
	}
}
