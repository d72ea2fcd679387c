package models

// HistoryRequest is the query payload for the continuous history endpoint.
// From/To accept RFC3339 or unix seconds; empty values default to the last
// 24 hours.
type HistoryRequest struct {
	Symbol string `query:"symbol" validate:"required,min=3,max=20"`
	TF     string `query:"timeframe"`
	From   string `query:"from"`
	To     string `query:"to"`
}

// HistoryResponse wraps the assembled candle sequence.
type HistoryResponse struct {
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Count     int      `json:"count"`
	Candles   []Candle `json:"candles"`
}
