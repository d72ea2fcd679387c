package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"CandleKeep/internal/domain/models"
	domrepo "CandleKeep/internal/domain/repository"
	"CandleKeep/internal/service/reconcile"
)

func mkCandle(sym, tf string, ts time.Time, close float64) models.Candle {
	return models.Candle{
		Time: ts, Symbol: sym, Timeframe: tf,
		Open: close, High: close, Low: close, Close: close, Volume: 1,
	}
}

func newHistory(hot domrepo.HotStore, cold domrepo.ColdStore, ex domrepo.ExchangeClient, cache domrepo.LiveCache) *HistoryUseCase {
	return NewHistoryUseCase(
		hot, cold, ex,
		reconcile.NewAnomalyCleaner(ex, hot, nil, nil),
		reconcile.NewBridge(ex, hot, nil, nil, 50),
		reconcile.NewLiveAppender(cache, nil),
		reconcile.NewValidator(ex, hot, nil, nil, 5),
		nil, nil, 1000,
	)
}

func TestGetContinuousHistoryMergePrefersHot(t *testing.T) {
	base := time.Now().UTC().Truncate(24 * time.Hour).Add(-48 * time.Hour)

	hot := newFakeHot()
	cold := &fakeCold{}
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * 24 * time.Hour)
		cold.rows = append(cold.rows, mkCandle("BTCUSDT", "1d", ts, 90))
		_ = hot.UpsertIgnore(context.Background(), mkCandle("BTCUSDT", "1d", ts, 100))
	}

	uc := newHistory(hot, cold, &fakeExchange{}, newFakeCache())
	out, err := uc.GetContinuousHistory(context.Background(), GetHistoryParams{
		Symbol: "BTCUSDT", Timeframe: domrepo.TF1d, From: base, To: base.Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(out))
	}
	for i, c := range out {
		if c.Close != 100 {
			t.Errorf("candle %d: close = %v, want hot value 100", i, c.Close)
		}
		if i > 0 && !out[i-1].Time.Before(c.Time) {
			t.Errorf("times not strictly increasing at %d", i)
		}
	}
}

func TestGetContinuousHistoryFineTimeframeSkipsCold(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour).Add(-2 * time.Hour)

	hot := newFakeHot()
	for i := 0; i < 3; i++ {
		_ = hot.UpsertIgnore(context.Background(), mkCandle("BTCUSDT", "1h", base.Add(time.Duration(i)*time.Hour), 100))
	}
	// Cold holds a conflicting row that must never be consulted at 1h.
	cold := &fakeCold{rows: []models.Candle{mkCandle("BTCUSDT", "1h", base.Add(30*time.Minute), 1)}}

	uc := newHistory(hot, cold, &fakeExchange{}, newFakeCache())
	out, err := uc.GetContinuousHistory(context.Background(), GetHistoryParams{
		Symbol: "BTCUSDT", Timeframe: domrepo.TF1h, From: base, To: base.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(out))
	}
	for _, c := range out {
		if c.Close == 1 {
			t.Fatal("cold row leaked into fine-timeframe read")
		}
	}
}

func TestGetContinuousHistoryCorruptRowsFiltered(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour).Add(-2 * time.Hour)

	hot := newFakeHot()
	_ = hot.UpsertIgnore(context.Background(), mkCandle("BTCUSDT", "1h", base, 100))
	bad := mkCandle("BTCUSDT", "1h", base.Add(time.Hour), 101)
	bad.Low = -5
	_ = hot.UpsertIgnore(context.Background(), bad)
	_ = hot.UpsertIgnore(context.Background(), mkCandle("BTCUSDT", "1h", base.Add(2*time.Hour), 102))

	uc := newHistory(hot, &fakeCold{}, &fakeExchange{}, newFakeCache())
	out, err := uc.GetContinuousHistory(context.Background(), GetHistoryParams{
		Symbol: "BTCUSDT", Timeframe: domrepo.TF1h, From: base, To: base.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range out {
		if c.Provenance != models.ProvenanceSynthetic && !c.Valid() {
			t.Fatalf("corrupt candle survived: %+v", c)
		}
	}
	// The dropped bucket is close enough (1h spacing becomes 2h = 2.0x > 1.5x)
	// that the filler resynthesizes it.
	if len(out) != 3 {
		t.Fatalf("expected 3 candles after filtering and filling, got %d", len(out))
	}
	if out[1].Provenance != models.ProvenanceSynthetic {
		t.Errorf("middle candle should be synthetic, got %q", out[1].Provenance)
	}
}

func TestGetContinuousHistoryEmptyTriggersFailover(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour).Add(-2 * time.Hour)
	fetched := []models.Candle{
		mkCandle("BTCUSDT", "1h", base, 100),
		mkCandle("BTCUSDT", "1h", base.Add(time.Hour), 101),
		mkCandle("BTCUSDT", "1h", base.Add(2*time.Hour), 102),
	}

	hot := newFakeHot()
	ex := &fakeExchange{candles: fetched}
	uc := newHistory(hot, &fakeCold{}, ex, newFakeCache())
	out, err := uc.GetContinuousHistory(context.Background(), GetHistoryParams{
		Symbol: "BTCUSDT", Timeframe: domrepo.TF1h, From: base, To: base.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 failover candles, got %d", len(out))
	}
	if len(hot.rows) != 3 {
		t.Errorf("failover candles must be persisted, got %d rows", len(hot.rows))
	}
}

func TestGetContinuousHistoryTotalFailureReturnsEmpty(t *testing.T) {
	base := time.Now().UTC().Add(-2 * time.Hour)
	uc := newHistory(newFakeHot(), &fakeCold{}, &fakeExchange{err: errDown}, newFakeCache())
	out, err := uc.GetContinuousHistory(context.Background(), GetHistoryParams{
		Symbol: "BTCUSDT", Timeframe: domrepo.TF1h, From: base, To: base.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("total failure must not be an error, got %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty sequence, got %d", len(out))
	}
}

func TestGetContinuousHistoryIntegrityGapSignalsRetry(t *testing.T) {
	// 80 minute spacing: too narrow for the 1.5x filler, wide enough for the
	// 1.1x validator.
	base := time.Now().UTC().Truncate(time.Hour).Add(-time.Hour)
	hot := newFakeHot()
	_ = hot.UpsertIgnore(context.Background(), mkCandle("BTCUSDT", "1h", base, 100))
	_ = hot.UpsertIgnore(context.Background(), mkCandle("BTCUSDT", "1h", base.Add(80*time.Minute), 101))

	uc := newHistory(hot, &fakeCold{}, &fakeExchange{err: errDown}, newFakeCache())
	_, err := uc.GetContinuousHistory(context.Background(), GetHistoryParams{
		Symbol: "BTCUSDT", Timeframe: domrepo.TF1h, From: base, To: base.Add(2 * time.Hour),
	})
	if !errors.Is(err, domrepo.ErrRetryableUnavailable) {
		t.Fatalf("expected ErrRetryableUnavailable, got %v", err)
	}
}

func TestGetContinuousHistoryNoDuplicates(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour).Add(-3 * time.Hour)
	hot := newFakeHot()
	cold := &fakeCold{}
	for i := 0; i < 4; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		_ = hot.UpsertIgnore(context.Background(), mkCandle("BTCUSDT", "1h", ts, 100+float64(i)))
	}

	uc := newHistory(hot, cold, &fakeExchange{}, newFakeCache())
	out, err := uc.GetContinuousHistory(context.Background(), GetHistoryParams{
		Symbol: "BTCUSDT", Timeframe: domrepo.TF1h, From: base, To: base.Add(3 * time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := make(map[int64]bool)
	for _, c := range out {
		if seen[c.Time.Unix()] {
			t.Fatalf("duplicate bucket at %v", c.Time)
		}
		seen[c.Time.Unix()] = true
	}
}

func TestGetContinuousHistoryIdempotentExceptLive(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Hour).Add(-3 * time.Hour)
	hot := newFakeHot()
	for i := 0; i < 4; i++ {
		_ = hot.UpsertIgnore(context.Background(), mkCandle("BTCUSDT", "1h", base.Add(time.Duration(i)*time.Hour), 100))
	}
	cache := newFakeCache()
	_ = cache.Set(context.Background(), models.LiveTick{
		Symbol: "BTCUSDT", Price: 105, Timestamp: time.Now().Unix(),
	})

	uc := newHistory(hot, &fakeCold{}, &fakeExchange{}, cache)
	p := GetHistoryParams{Symbol: "BTCUSDT", Timeframe: domrepo.TF1h, From: base, To: base.Add(3 * time.Hour)}

	first, err := uc.GetContinuousHistory(context.Background(), p)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := uc.GetContinuousHistory(context.Background(), p)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := 0; i < len(first)-1; i++ {
		if first[i] != second[i] {
			t.Errorf("non-live candle %d changed between calls", i)
		}
	}
}

func TestGetContinuousHistoryRejectsBadParams(t *testing.T) {
	uc := newHistory(newFakeHot(), &fakeCold{}, &fakeExchange{}, newFakeCache())
	now := time.Now()

	if _, err := uc.GetContinuousHistory(context.Background(), GetHistoryParams{
		Timeframe: domrepo.TF1h, From: now.Add(-time.Hour), To: now,
	}); err == nil {
		t.Error("expected error for missing symbol")
	}
	if _, err := uc.GetContinuousHistory(context.Background(), GetHistoryParams{
		Symbol: "BTCUSDT", Timeframe: domrepo.Timeframe("2h"), From: now.Add(-time.Hour), To: now,
	}); err == nil {
		t.Error("expected error for unknown timeframe")
	}
	if _, err := uc.GetContinuousHistory(context.Background(), GetHistoryParams{
		Symbol: "BTCUSDT", Timeframe: domrepo.TF1h, From: now, To: now.Add(-time.Hour),
	}); err == nil {
		t.Error("expected error for inverted range")
	}
}
