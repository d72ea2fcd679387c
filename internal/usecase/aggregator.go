package usecase

import (
	"context"
	"fmt"
	"time"

	"CandleKeep/internal/domain/models"
	domrepo "CandleKeep/internal/domain/repository"
	applogger "CandleKeep/pkg/logger"
)

// Aggregator folds a tick stream into every configured timeframe bucket
// simultaneously. One tick fans out into one upsert per timeframe, which
// keeps each timeframe's forming bucket query-ready without a rollup job.
// The aggregator is also the single writer of the live tick cache.
type Aggregator struct {
	hot        domrepo.HotStore
	cache      domrepo.LiveCache
	metrics    domrepo.Metrics
	logger     *applogger.Logger
	timeframes []domrepo.Timeframe
}

// NewAggregator creates a multi-timeframe aggregator.
func NewAggregator(hot domrepo.HotStore, cache domrepo.LiveCache, metrics domrepo.Metrics, logger *applogger.Logger, timeframes []domrepo.Timeframe) *Aggregator {
	if len(timeframes) == 0 {
		timeframes = domrepo.AllTimeframes()
	}
	valid := make([]domrepo.Timeframe, 0, len(timeframes))
	for _, tf := range timeframes {
		if domrepo.IsValidTimeframe(tf) {
			valid = append(valid, tf)
		}
	}
	return &Aggregator{hot: hot, cache: cache, metrics: metrics, logger: logger, timeframes: valid}
}

// Timeframes returns the configured fan-out set.
func (a *Aggregator) Timeframes() []domrepo.Timeframe { return a.timeframes }

// Apply upserts the tick into every configured bucket and refreshes the live
// cache snapshot. A failed upsert for one timeframe does not stop the rest;
// the first error is returned after the fan-out completes.
func (a *Aggregator) Apply(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}
	if t.Symbol == "" || t.Price <= 0 {
		return fmt.Errorf("invalid tick %+v", t)
	}

	ts := time.Unix(t.Timestamp, 0)
	var firstErr error
	for _, tf := range a.timeframes {
		bucket := domrepo.BucketStart(ts, tf)
		if err := a.hot.ApplyTick(ctx, t.Symbol, tf, bucket, t.Price, t.Volume); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("apply tick %s/%s: %w", t.Symbol, tf, err)
			}
			if a.metrics != nil {
				a.metrics.RecordError("aggregate")
			}
			if a.logger != nil {
				a.logger.Warn("bucket upsert failed",
					applogger.String("symbol", t.Symbol),
					applogger.String("timeframe", string(tf)),
					applogger.Error(err),
				)
			}
			continue
		}
		if a.metrics != nil {
			a.metrics.RecordMessageSent("hot", t.Symbol)
		}
	}

	if err := a.cache.Set(ctx, models.LiveTick{
		Symbol:    t.Symbol,
		Price:     t.Price,
		Volume:    t.Volume,
		Timestamp: t.Timestamp,
	}); err != nil {
		if a.logger != nil {
			a.logger.Warn("live cache write failed",
				applogger.String("symbol", t.Symbol),
				applogger.Error(err),
			)
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("live cache set: %w", err)
		}
	}
	if a.metrics != nil {
		a.metrics.RecordLastPrice(t.Symbol, t.Price)
	}
	return firstErr
}
