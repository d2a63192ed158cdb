package yahooModel

// ChartResponse mirrors /v8/finance/chart. Quote arrays hold nulls for days without trades.
type ChartResponse struct {
	Chart Chart `json:"chart"`
}

type Chart struct {
	Result []Result    `json:"result"`
	Error  *ChartError `json:"error"`
}

type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type Result struct {
	Meta       Meta       `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators Indicators `json:"indicators"`
}

type Meta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
	Range    string `json:"range"`
}

type Indicators struct {
	Quote []Quote `json:"quote"`
}

type Quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*uint64  `json:"volume"`
}
