package model

type PriceBar struct {
	Timestamp int64 // milliseconds since epoch
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    *uint64
}

// PriceTable is the per-ticker history with a fixed six-column schema.
type PriceTable struct {
	Timestamp []int64   `json:"timestamp"`
	Open      []float64 `json:"open"`
	High      []float64 `json:"high"`
	Low       []float64 `json:"low"`
	Close     []float64 `json:"close"`
	Volume    []uint64  `json:"volume"`
}

var PriceTableColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

func (t PriceTable) Len() int {
	return len(t.Timestamp)
}

// Bar returns row i as a PriceBar. Volume is always set.
func (t PriceTable) Bar(i int) PriceBar {
	volume := t.Volume[i]
	return PriceBar{
		Timestamp: t.Timestamp[i],
		Open:      t.Open[i],
		High:      t.High[i],
		Low:       t.Low[i],
		Close:     t.Close[i],
		Volume:    &volume,
	}
}
