package reconcile

import (
	"context"
	"time"

	"CandleKeep/internal/domain/models"
	"CandleKeep/internal/domain/repository"
	applogger "CandleKeep/pkg/logger"
)

// validateTolerance is deliberately tighter than gapTolerance. The filler and
// bridge run first with the looser bound, so a spacing in (1.1, 1.5] never
// flip-flops between fill and repair.
const validateTolerance = 1.1

// Validator is the last line of defense on the read path. Filling and
// bridging should have closed every gap already; anything still open here is
// an integrity violation that gets repaired in storage while the caller is
// told to retry.
type Validator struct {
	exchange repository.ExchangeClient
	hot      repository.HotStore
	metrics  repository.Metrics
	logger   *applogger.Logger
	limit    int
}

// NewValidator creates an integrity validator. limit bounds the repair page.
func NewValidator(exchange repository.ExchangeClient, hot repository.HotStore, metrics repository.Metrics, logger *applogger.Logger, limit int) *Validator {
	if limit <= 0 {
		limit = 5
	}
	return &Validator{exchange: exchange, hot: hot, metrics: metrics, logger: logger, limit: limit}
}

// Validate walks the final sequence pairwise. On the first gap wider than
// 1.1 bucket widths it issues an authoritative repair write and returns
// ErrRetryableUnavailable so the caller never observes data the engine knows
// is incomplete. The retry sees the repaired rows.
func (v *Validator) Validate(ctx context.Context, symbol string, tf repository.Timeframe, candles []models.Candle) error {
	d, ok := tf.Duration()
	if !ok || len(candles) < 2 {
		return nil
	}

	for i := 0; i < len(candles)-1; i++ {
		gap := candles[i+1].Time.Sub(candles[i].Time)
		if float64(gap) <= validateTolerance*float64(d) {
			continue
		}

		missingAt := candles[i].Time.Add(d)
		if v.logger != nil {
			v.logger.Error("integrity gap after reconciliation",
				applogger.String("symbol", symbol),
				applogger.String("timeframe", string(tf)),
				applogger.Time("missing_at", missingAt),
				applogger.Duration("gap", gap),
			)
		}

		v.repair(ctx, symbol, tf, missingAt)
		if v.metrics != nil {
			v.metrics.RecordRepair("integrity")
		}
		return repository.ErrRetryableUnavailable
	}
	return nil
}

// repair fetches a small page at the missing instant and upserts with
// overwrite semantics. Unlike the ignore-on-conflict writes elsewhere, repair
// is authoritative.
func (v *Validator) repair(ctx context.Context, symbol string, tf repository.Timeframe, since time.Time) {
	fetched, err := v.exchange.FetchCandles(ctx, symbol, tf, since, v.limit)
	if err != nil {
		if v.logger != nil {
			v.logger.Warn("integrity repair fetch failed",
				applogger.String("symbol", symbol),
				applogger.Time("since", since),
				applogger.Error(err),
			)
		}
		return
	}
	for _, c := range fetched {
		if !c.Valid() {
			continue
		}
		if err := v.hot.UpsertOverwrite(ctx, c); err != nil && v.logger != nil {
			v.logger.Warn("integrity repair persist failed",
				applogger.String("symbol", symbol),
				applogger.Time("bucket", c.Time),
				applogger.Error(err),
			)
		}
	}
}
