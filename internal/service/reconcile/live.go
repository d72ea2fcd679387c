package reconcile

import (
	"context"
	"time"

	"CandleKeep/internal/domain/models"
	"CandleKeep/internal/domain/repository"
	applogger "CandleKeep/pkg/logger"
)

// clockSkew is the tolerance used when comparing a tick's bucket against the
// last candle's bucket. Feed clocks and ours disagree by up to a second.
const clockSkew = time.Second

// LiveAppender stitches the most recent cached tick onto the tail of the
// sequence. The live candle is a value merged in at return time; it never
// aliases a persisted row and is recomputed on every call.
type LiveAppender struct {
	cache  repository.LiveCache
	logger *applogger.Logger
}

// NewLiveAppender creates a live candle appender.
func NewLiveAppender(cache repository.LiveCache, logger *applogger.Logger) *LiveAppender {
	return &LiveAppender{cache: cache, logger: logger}
}

// Append merges the cached tick into the output. Same bucket mutates the
// (copied) last candle's high/low/close; a newer bucket appends a forming
// candle opened at the previous close; a stale tick is ignored.
func (l *LiveAppender) Append(ctx context.Context, symbol string, tf repository.Timeframe, candles []models.Candle) []models.Candle {
	if len(candles) == 0 {
		return candles
	}
	if _, ok := tf.Duration(); !ok {
		return candles
	}

	tick, found, err := l.cache.Get(ctx, symbol)
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("live cache read failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return candles
	}
	if !found || tick.Price <= 0 {
		return candles
	}

	bucket := repository.BucketStart(time.Unix(tick.Timestamp, 0), tf)
	last := candles[len(candles)-1]
	diff := bucket.Sub(last.Time)

	switch {
	case diff >= -clockSkew && diff <= clockSkew:
		// Same bucket: fold the tick into a copy of the last candle.
		if tick.Price > last.High {
			last.High = tick.Price
		}
		if tick.Price < last.Low {
			last.Low = tick.Price
		}
		last.Close = tick.Price
		candles[len(candles)-1] = last
	case diff > clockSkew:
		// Next bucket started: open at the previous close to avoid an
		// artificial jump.
		open := last.Close
		c := models.Candle{
			Time:       bucket,
			Symbol:     symbol,
			Timeframe:  string(tf),
			Open:       open,
			High:       max(open, tick.Price),
			Low:        min(open, tick.Price),
			Close:      tick.Price,
			Volume:     0,
			Provenance: models.ProvenanceLive,
		}
		candles = append(candles, c)
	default:
		// Stale tick, older than the last bucket: ignore.
	}
	return candles
}
