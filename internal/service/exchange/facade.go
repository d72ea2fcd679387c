package exchange

import (
	"context"
	"fmt"
	"time"

	"CandleKeep/internal/domain/models"
	domrepo "CandleKeep/internal/domain/repository"
	applogger "CandleKeep/pkg/logger"
)

// Facade tries the primary venue first and falls back to the secondary. It
// only fails when every venue fails.
type Facade struct {
	primary  domrepo.ExchangeClient
	fallback domrepo.ExchangeClient
	metrics  domrepo.Metrics
	logger   *applogger.Logger
}

// NewFacade creates the exchange facade. fallback may be nil.
func NewFacade(primary, fallback domrepo.ExchangeClient, metrics domrepo.Metrics, logger *applogger.Logger) domrepo.ExchangeClient {
	return &Facade{primary: primary, fallback: fallback, metrics: metrics, logger: logger}
}

func (f *Facade) FetchCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, since time.Time, limit int) ([]models.Candle, error) {
	candles, err := f.primary.FetchCandles(ctx, symbol, tf, since, limit)
	if err == nil {
		return candles, nil
	}

	if f.metrics != nil {
		f.metrics.RecordError("exchange_primary")
	}
	if f.logger != nil {
		f.logger.Warn("primary venue failed, trying fallback",
			applogger.String("symbol", symbol),
			applogger.String("timeframe", string(tf)),
			applogger.Error(err),
		)
	}
	if f.fallback == nil {
		return nil, fmt.Errorf("primary venue: %w", err)
	}

	candles, ferr := f.fallback.FetchCandles(ctx, symbol, tf, since, limit)
	if ferr != nil {
		if f.metrics != nil {
			f.metrics.RecordError("exchange_fallback")
		}
		return nil, fmt.Errorf("all venues failed: primary: %v; fallback: %w", err, ferr)
	}
	return candles, nil
}
