package market

// Quote is the normalized snapshot shape served to clients. Missing
// upstream numerics are reported as 0.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Currency      string  `json:"currency"`
}

// Candle is one daily bar. Open, high and low stay null when the
// provider omits them; bars without a close are dropped upstream of this
// type, so Close is always set. A missing volume becomes 0.
type Candle struct {
	Date   string   `json:"date"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  float64  `json:"close"`
	Volume int64    `json:"volume"`
}

// SymbolMatch is one search hit.
type SymbolMatch struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Type     string `json:"type"`
}
