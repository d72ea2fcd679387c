package usecase

import (
	"context"
	"testing"
	"time"

	"CandleKeep/internal/domain/models"
	domrepo "CandleKeep/internal/domain/repository"
)

func TestAggregatorFansOutPerTimeframe(t *testing.T) {
	hot := newFakeHot()
	cache := newFakeCache()
	tfs := []domrepo.Timeframe{domrepo.TF1m, domrepo.TF1h, domrepo.TF1d}
	agg := NewAggregator(hot, cache, newFakeMetrics(), nil, tfs)

	ts := time.Date(2024, 5, 1, 10, 47, 33, 0, time.UTC)
	err := agg.Apply(context.Background(), &models.Tick{
		Symbol: "BTCUSDT", Price: 50000, Volume: 2, Timestamp: ts.Unix(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(hot.applied) != 3 {
		t.Fatalf("expected one upsert per timeframe, got %d", len(hot.applied))
	}

	wantBuckets := map[domrepo.Timeframe]time.Time{
		domrepo.TF1m: time.Date(2024, 5, 1, 10, 47, 0, 0, time.UTC),
		domrepo.TF1h: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		domrepo.TF1d: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, a := range hot.applied {
		want, ok := wantBuckets[a.tf]
		if !ok {
			t.Errorf("unexpected timeframe %q", a.tf)
			continue
		}
		if !a.bucket.Equal(want) {
			t.Errorf("%s bucket = %v, want %v", a.tf, a.bucket, want)
		}
	}

	tick, found, _ := cache.Get(context.Background(), "BTCUSDT")
	if !found {
		t.Fatal("live cache snapshot missing")
	}
	if tick.Price != 50000 || tick.Timestamp != ts.Unix() {
		t.Errorf("cached tick = %+v", tick)
	}
}

func TestAggregatorBucketSemantics(t *testing.T) {
	hot := newFakeHot()
	agg := NewAggregator(hot, newFakeCache(), newFakeMetrics(), nil, []domrepo.Timeframe{domrepo.TF1h})

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ticks := []struct {
		offset time.Duration
		price  float64
		volume float64
	}{
		{5 * time.Minute, 100, 1},
		{20 * time.Minute, 120, 2},
		{40 * time.Minute, 90, 3},
		{55 * time.Minute, 110, 4},
	}
	for _, tk := range ticks {
		err := agg.Apply(context.Background(), &models.Tick{
			Symbol: "BTCUSDT", Price: tk.price, Volume: tk.volume,
			Timestamp: base.Add(tk.offset).Unix(),
		})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	rows, err := hot.SelectRange(context.Background(), "BTCUSDT", domrepo.TF1h, base, base)
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected a single bucket, got %d (err %v)", len(rows), err)
	}
	c := rows[0]
	if c.Open != 100 {
		t.Errorf("open = %v, want first price 100", c.Open)
	}
	if c.High != 120 {
		t.Errorf("high = %v, want 120", c.High)
	}
	if c.Low != 90 {
		t.Errorf("low = %v, want 90", c.Low)
	}
	if c.Close != 110 {
		t.Errorf("close = %v, want last price 110", c.Close)
	}
	if c.Volume != 10 {
		t.Errorf("volume = %v, want 10", c.Volume)
	}
}

func TestAggregatorRejectsInvalidTick(t *testing.T) {
	agg := NewAggregator(newFakeHot(), newFakeCache(), newFakeMetrics(), nil, nil)

	if err := agg.Apply(context.Background(), nil); err == nil {
		t.Error("expected error for nil tick")
	}
	if err := agg.Apply(context.Background(), &models.Tick{Symbol: "", Price: 1}); err == nil {
		t.Error("expected error for empty symbol")
	}
	if err := agg.Apply(context.Background(), &models.Tick{Symbol: "BTCUSDT", Price: 0}); err == nil {
		t.Error("expected error for non-positive price")
	}
}

func TestAggregatorDropsUnknownTimeframes(t *testing.T) {
	agg := NewAggregator(newFakeHot(), newFakeCache(), newFakeMetrics(), nil,
		[]domrepo.Timeframe{domrepo.TF1h, domrepo.Timeframe("3h")})
	if got := len(agg.Timeframes()); got != 1 {
		t.Fatalf("expected unknown timeframe filtered, got %d", got)
	}
}
