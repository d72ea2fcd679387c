package repository

import (
	"context"
	"errors"
	"time"

	"CandleKeep/internal/domain/models"
)

// ErrRetryableUnavailable is returned by the history assembler when an
// integrity gap was detected and repaired in storage. The response the caller
// would have received is known to be incomplete; a retry observes the
// repaired data.
var ErrRetryableUnavailable = errors.New("data gap detected, repair issued, retry the request")

// HotStore is the low-latency tier for recent candle rows.
type HotStore interface {
	// UpsertIgnore inserts the candle, keeping the existing row untouched on
	// a (time, symbol, timeframe) conflict.
	UpsertIgnore(ctx context.Context, c models.Candle) error
	// UpsertOverwrite inserts the candle, replacing the existing row's OHLCV
	// on conflict. Repair writes are authoritative.
	UpsertOverwrite(ctx context.Context, c models.Candle) error
	// ApplyTick folds a tick into the bucket row: open insert-only, high/low
	// accumulate, close overwritten, volume added.
	ApplyTick(ctx context.Context, symbol string, tf Timeframe, bucket time.Time, price, volume float64) error
	// SelectRange returns candles ordered by time ascending.
	SelectRange(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) ([]models.Candle, error)
	// SelectBefore returns up to limit candles older than cutoff, any order.
	SelectBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Candle, error)
	// DeleteRows removes exactly the given rows by (time, symbol, timeframe)
	// key and reports the count. Rows not present are skipped.
	DeleteRows(ctx context.Context, rows []models.Candle) (int64, error)
}

// ColdStore is the bulk archive tier. The read path treats it as read-only;
// only the archival mover writes to it.
type ColdStore interface {
	SelectRange(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) ([]models.Candle, error)
	InsertBatch(ctx context.Context, candles []models.Candle) error
}

// LiveCache holds the most recent tick per symbol with a short TTL.
// Single writer (ingestion), many readers (assembler).
type LiveCache interface {
	Get(ctx context.Context, symbol string) (models.LiveTick, bool, error)
	Set(ctx context.Context, tick models.LiveTick) error
}

// ExchangeClient fetches historical candles from an upstream feed. The facade
// implementation tries a fallback venue before reporting failure.
type ExchangeClient interface {
	FetchCandles(ctx context.Context, symbol string, tf Timeframe, since time.Time, limit int) ([]models.Candle, error)
}

// TickStream is a live trade feed.
type TickStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher forwards ticks to the ingestion transport.
type Publisher interface {
	Publish(ctx context.Context, t *models.Tick) error
	PublishBatch(ctx context.Context, ticks []*models.Tick) error
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordRepair(kind string)
	RecordGapFilled(tf string, count int)
}
