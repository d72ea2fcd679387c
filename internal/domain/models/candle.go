package models

import "time"

// Provenance records where a candle came from.
type Provenance string

const (
	// ProvenanceHot marks rows read from the hot store.
	ProvenanceHot Provenance = "hot"
	// ProvenanceCold marks rows read from the cold archive.
	ProvenanceCold Provenance = "cold"
	// ProvenanceSynthetic marks interpolated candles that are never persisted.
	ProvenanceSynthetic Provenance = "synthetic"
	// ProvenanceLive marks the forming candle built from the latest cached tick.
	ProvenanceLive Provenance = "live"
)

// Candle represents an OHLCV bucket, unique per (symbol, timeframe, time).
// Time is the bucket-start instant in UTC.
type Candle struct {
	Time       time.Time  `json:"time"`
	Symbol     string     `json:"symbol"`
	Timeframe  string     `json:"timeframe"`
	Open       float64    `json:"open"`
	High       float64    `json:"high"`
	Low        float64    `json:"low"`
	Close      float64    `json:"close"`
	Volume     float64    `json:"volume"`
	Provenance Provenance `json:"provenance,omitempty"`
}

// Valid reports whether all price fields are positive. Candles failing this
// are treated as corrupt and filtered out of every read path.
func (c Candle) Valid() bool {
	return c.Open > 0 && c.High > 0 && c.Low > 0 && c.Close > 0
}

// Tick is a single observed trade.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"` // unix seconds
}

// LiveTick is the most recent tick snapshot per symbol, kept in the live
// price cache with a short TTL. Written only by the ingestion side.
type LiveTick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"last"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"` // unix seconds
}
