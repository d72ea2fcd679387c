package reconcile

import (
	"context"
	"math"

	"CandleKeep/internal/domain/models"
	"CandleKeep/internal/domain/repository"
	applogger "CandleKeep/pkg/logger"
)

const (
	// anomalyWindow is the number of already-accepted candles needed before
	// deviation checks kick in. Earlier candles pass through unconditionally.
	anomalyWindow = 24
	// anomalyThreshold is the relative close deviation above which a candle is
	// treated as a statistical anomaly.
	anomalyThreshold = 0.50
)

// AnomalyCleaner filters statistical outliers from an ordered candle
// sequence. An anomalous candle is repaired via a single-bucket exchange
// refetch, interpolated from the previous accepted close when the refetch
// fails, and dropped when neither works.
type AnomalyCleaner struct {
	exchange repository.ExchangeClient
	hot      repository.HotStore
	metrics  repository.Metrics
	logger   *applogger.Logger
}

// NewAnomalyCleaner creates an anomaly cleaner.
func NewAnomalyCleaner(exchange repository.ExchangeClient, hot repository.HotStore, metrics repository.Metrics, logger *applogger.Logger) *AnomalyCleaner {
	return &AnomalyCleaner{exchange: exchange, hot: hot, metrics: metrics, logger: logger}
}

// Clean returns the accepted sequence. The rolling mean is computed over the
// last accepted candles, interpolated ones included, so a run of repairs
// shifts the baseline along with the data.
func (a *AnomalyCleaner) Clean(ctx context.Context, symbol string, tf repository.Timeframe, candles []models.Candle) []models.Candle {
	if len(candles) <= anomalyWindow {
		return candles
	}

	accepted := make([]models.Candle, 0, len(candles))
	accepted = append(accepted, candles[:anomalyWindow]...)

	for _, c := range candles[anomalyWindow:] {
		mean := meanClose(accepted[len(accepted)-anomalyWindow:])
		if mean <= 0 || math.Abs(c.Close-mean)/mean <= anomalyThreshold {
			accepted = append(accepted, c)
			continue
		}

		if a.logger != nil {
			a.logger.Warn("anomalous candle detected",
				applogger.String("symbol", symbol),
				applogger.String("timeframe", string(tf)),
				applogger.Time("bucket", c.Time),
				applogger.Float64("close", c.Close),
				applogger.Float64("mean", mean),
			)
		}

		if repaired, ok := a.repair(ctx, symbol, tf, c); ok {
			accepted = append(accepted, repaired)
			continue
		}

		// Refetch failed; fall back to copying the previous accepted close
		// into every price field.
		prev := accepted[len(accepted)-1]
		if prev.Close > 0 {
			c.Open, c.High, c.Low, c.Close = prev.Close, prev.Close, prev.Close, prev.Close
			c.Provenance = models.ProvenanceSynthetic
			accepted = append(accepted, c)
			continue
		}

		// Nothing to interpolate from: drop the candle.
	}

	return accepted
}

// repair refetches the single bucket from the exchange and overwrites the
// stored row when the refetched candle looks sane.
func (a *AnomalyCleaner) repair(ctx context.Context, symbol string, tf repository.Timeframe, c models.Candle) (models.Candle, bool) {
	fetched, err := a.exchange.FetchCandles(ctx, symbol, tf, c.Time, 1)
	if err != nil || len(fetched) == 0 {
		if err != nil && a.logger != nil {
			a.logger.Warn("anomaly refetch failed",
				applogger.String("symbol", symbol),
				applogger.Time("bucket", c.Time),
				applogger.Error(err),
			)
		}
		return c, false
	}

	r := fetched[0]
	if !r.Time.Equal(c.Time) || !r.Valid() {
		return c, false
	}

	c.Open, c.High, c.Low, c.Close, c.Volume = r.Open, r.High, r.Low, r.Close, r.Volume
	if err := a.hot.UpsertOverwrite(ctx, c); err != nil && a.logger != nil {
		a.logger.Warn("anomaly repair persist failed",
			applogger.String("symbol", symbol),
			applogger.Time("bucket", c.Time),
			applogger.Error(err),
		)
	}
	if a.metrics != nil {
		a.metrics.RecordRepair("anomaly")
	}
	return c, true
}

func meanClose(candles []models.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var sum float64
	for _, c := range candles {
		sum += c.Close
	}
	return sum / float64(len(candles))
}
