package reconcile

import (
	"context"
	"time"

	"CandleKeep/internal/domain/models"
	"CandleKeep/internal/domain/repository"
	applogger "CandleKeep/pkg/logger"
)

// Bridge closes the gap between the newest stored candle and now by fetching
// the missing tail from the exchange. It self-heals the backlog after an
// outage without a separate backfill job.
type Bridge struct {
	exchange repository.ExchangeClient
	hot      repository.HotStore
	metrics  repository.Metrics
	logger   *applogger.Logger
	limit    int
	now      func() time.Time
}

// NewBridge creates a realtime-gap bridge. limit bounds the catch-up page.
func NewBridge(exchange repository.ExchangeClient, hot repository.HotStore, metrics repository.Metrics, logger *applogger.Logger, limit int) *Bridge {
	if limit <= 0 {
		limit = 50
	}
	return &Bridge{
		exchange: exchange,
		hot:      hot,
		metrics:  metrics,
		logger:   logger,
		limit:    limit,
		now:      time.Now,
	}
}

// Extend appends exchange candles newer than the last element when the
// sequence has fallen more than 1.5 bucket widths behind now. Fetched candles
// are persisted with insert-ignore semantics; a fetch failure leaves the
// sequence as it was.
func (b *Bridge) Extend(ctx context.Context, symbol string, tf repository.Timeframe, candles []models.Candle) []models.Candle {
	d, ok := tf.Duration()
	if !ok || len(candles) == 0 {
		return candles
	}

	last := candles[len(candles)-1]
	behind := b.now().UTC().Sub(last.Time)
	if float64(behind) <= gapTolerance*float64(d) {
		return candles
	}

	since := last.Time.Add(d)
	fetched, err := b.exchange.FetchCandles(ctx, symbol, tf, since, b.limit)
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("realtime bridge fetch failed",
				applogger.String("symbol", symbol),
				applogger.String("timeframe", string(tf)),
				applogger.Time("since", since),
				applogger.Error(err),
			)
		}
		return candles
	}

	appended := 0
	for _, c := range fetched {
		if !c.Time.After(last.Time) || !c.Valid() {
			continue
		}
		if err := b.hot.UpsertIgnore(ctx, c); err != nil && b.logger != nil {
			b.logger.Warn("bridge persist failed",
				applogger.String("symbol", symbol),
				applogger.Time("bucket", c.Time),
				applogger.Error(err),
			)
		}
		candles = append(candles, c)
		last = c
		appended++
	}
	if appended > 0 && b.metrics != nil {
		b.metrics.RecordRepair("bridge")
	}
	return candles
}
