package dbModel

import (
	"github.com/shopspring/decimal"
)

type PriceBar struct {
	Symbol    string          `db:"symbol"`
	Timestamp int64           `db:"ts_ms"`
	Open      decimal.Decimal `db:"open"`
	High      decimal.Decimal `db:"high"`
	Low       decimal.Decimal `db:"low"`
	Close     decimal.Decimal `db:"close"`
	Volume    int64           `db:"volume"`
}
