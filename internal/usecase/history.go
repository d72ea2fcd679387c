package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"CandleKeep/internal/domain/models"
	domrepo "CandleKeep/internal/domain/repository"
	"CandleKeep/internal/service/reconcile"
	applogger "CandleKeep/pkg/logger"
)

// HistoryUseCase assembles gap-free candle history out of the two store
// tiers, the exchange facade, and the live tick cache. Every stage failure
// short of the final validator is logged and treated as "no additional data".
type HistoryUseCase struct {
	hot      domrepo.HotStore
	cold     domrepo.ColdStore
	exchange domrepo.ExchangeClient
	cleaner  *reconcile.AnomalyCleaner
	bridge   *reconcile.Bridge
	appender *reconcile.LiveAppender
	valid    *reconcile.Validator
	metrics  domrepo.Metrics
	logger   *applogger.Logger

	failoverLimit int
}

// NewHistoryUseCase creates the history assembler.
func NewHistoryUseCase(
	hot domrepo.HotStore,
	cold domrepo.ColdStore,
	exchange domrepo.ExchangeClient,
	cleaner *reconcile.AnomalyCleaner,
	bridge *reconcile.Bridge,
	appender *reconcile.LiveAppender,
	valid *reconcile.Validator,
	metrics domrepo.Metrics,
	logger *applogger.Logger,
	failoverLimit int,
) *HistoryUseCase {
	if failoverLimit <= 0 {
		failoverLimit = 1000
	}
	return &HistoryUseCase{
		hot:           hot,
		cold:          cold,
		exchange:      exchange,
		cleaner:       cleaner,
		bridge:        bridge,
		appender:      appender,
		valid:         valid,
		metrics:       metrics,
		logger:        logger,
		failoverLimit: failoverLimit,
	}
}

// GetHistoryParams holds the assembler request.
type GetHistoryParams struct {
	Symbol    string
	Timeframe domrepo.Timeframe
	From      time.Time
	To        time.Time
}

// GetContinuousHistory returns ordered candles, oldest first. An empty slice
// with a nil error means no data exists anywhere for the range. The only
// error that escapes is ErrRetryableUnavailable, raised after an integrity
// repair so the caller retries against consistent data.
func (uc *HistoryUseCase) GetContinuousHistory(ctx context.Context, p GetHistoryParams) ([]models.Candle, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if !domrepo.IsValidTimeframe(p.Timeframe) {
		return nil, fmt.Errorf("unknown timeframe %q", p.Timeframe)
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	start := time.Now()

	// 1. Hot tier.
	hot, err := uc.hot.SelectRange(ctx, p.Symbol, p.Timeframe, p.From, p.To)
	if err != nil {
		uc.warn("hot select failed", p, err)
		hot = nil
	}

	// 2. Cold tier, coarse timeframes only.
	var cold []models.Candle
	if domrepo.UsesColdStore(p.Timeframe) {
		cold, err = uc.cold.SelectRange(ctx, p.Symbol, p.Timeframe, p.From, p.To)
		if err != nil {
			uc.warn("cold select failed", p, err)
			cold = nil
		}
	}

	// 3-4. Merge with hot precedence, sort, drop corrupt rows.
	candles := mergeCandles(hot, cold)

	// 5. On-demand failover when both tiers came back empty.
	if len(candles) == 0 {
		candles = uc.failover(ctx, p)
		if len(candles) == 0 {
			return []models.Candle{}, nil
		}
	}

	// 6-9. Reconcile stages; each one degrades to pass-through on failure.
	candles = uc.cleaner.Clean(ctx, p.Symbol, p.Timeframe, candles)

	before := len(candles)
	candles = reconcile.FillGaps(candles, p.Timeframe)
	if filled := len(candles) - before; filled > 0 && uc.metrics != nil {
		uc.metrics.RecordGapFilled(string(p.Timeframe), filled)
	}

	candles = uc.bridge.Extend(ctx, p.Symbol, p.Timeframe, candles)
	candles = uc.appender.Append(ctx, p.Symbol, p.Timeframe, candles)

	// 10. Integrity validator. Unlike the stages above, its failure mode is a
	// retry signal rather than degraded output.
	if err := uc.valid.Validate(ctx, p.Symbol, p.Timeframe, candles); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.RecordLatency("history_assemble", time.Since(start).Seconds())
	}
	return candles, nil
}

// failover pulls one bounded page from the exchange facade and persists it
// with insert-ignore semantics. Total failure is terminal: the caller gets an
// empty sequence, not an error.
func (uc *HistoryUseCase) failover(ctx context.Context, p GetHistoryParams) []models.Candle {
	fetched, err := uc.exchange.FetchCandles(ctx, p.Symbol, p.Timeframe, p.From, uc.failoverLimit)
	if err != nil {
		uc.warn("failover fetch failed", p, err)
		if uc.metrics != nil {
			uc.metrics.RecordError("failover")
		}
		return nil
	}

	candles := make([]models.Candle, 0, len(fetched))
	for _, c := range fetched {
		if !c.Valid() {
			continue
		}
		if c.Time.Before(p.From) || c.Time.After(p.To) {
			continue
		}
		if err := uc.hot.UpsertIgnore(ctx, c); err != nil {
			uc.warn("failover persist failed", p, err)
		}
		candles = append(candles, c)
	}
	return candles
}

func (uc *HistoryUseCase) warn(msg string, p GetHistoryParams, err error) {
	if uc.logger == nil {
		return
	}
	uc.logger.Warn(msg,
		applogger.String("symbol", p.Symbol),
		applogger.String("timeframe", string(p.Timeframe)),
		applogger.Error(err),
	)
}

// mergeCandles merges the two tiers by bucket time with hot precedence,
// drops rows with non-positive OHLC, and sorts ascending.
func mergeCandles(hot, cold []models.Candle) []models.Candle {
	byTime := make(map[int64]models.Candle, len(hot)+len(cold))
	for _, c := range cold {
		if c.Valid() {
			byTime[c.Time.Unix()] = c
		}
	}
	for _, c := range hot {
		if c.Valid() {
			byTime[c.Time.Unix()] = c
		}
	}

	merged := make([]models.Candle, 0, len(byTime))
	for _, c := range byTime {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Time.Before(merged[j].Time) })
	return merged
}
