package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"CandleKeep/internal/domain/models"
	domrepo "CandleKeep/internal/domain/repository"
)

type fakeHot struct {
	mu      sync.Mutex
	rows    map[string]models.Candle // keyed by sym|tf|unix
	applied []appliedTick
	selErr  error
}

type appliedTick struct {
	symbol string
	tf     domrepo.Timeframe
	bucket time.Time
	price  float64
	volume float64
}

func newFakeHot() *fakeHot {
	return &fakeHot{rows: make(map[string]models.Candle)}
}

func hotKey(sym, tf string, t time.Time) string {
	return sym + "|" + tf + "|" + t.UTC().Format(time.RFC3339)
}

func (f *fakeHot) UpsertIgnore(_ context.Context, c models.Candle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := hotKey(c.Symbol, c.Timeframe, c.Time)
	if _, ok := f.rows[k]; !ok {
		f.rows[k] = c
	}
	return nil
}

func (f *fakeHot) UpsertOverwrite(_ context.Context, c models.Candle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[hotKey(c.Symbol, c.Timeframe, c.Time)] = c
	return nil
}

func (f *fakeHot) ApplyTick(_ context.Context, symbol string, tf domrepo.Timeframe, bucket time.Time, price, volume float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, appliedTick{symbol, tf, bucket, price, volume})
	k := hotKey(symbol, string(tf), bucket)
	c, ok := f.rows[k]
	if !ok {
		f.rows[k] = models.Candle{
			Time: bucket, Symbol: symbol, Timeframe: string(tf),
			Open: price, High: price, Low: price, Close: price, Volume: volume,
		}
		return nil
	}
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	c.Close = price
	c.Volume += volume
	f.rows[k] = c
	return nil
}

func (f *fakeHot) SelectRange(_ context.Context, symbol string, tf domrepo.Timeframe, from, to time.Time) ([]models.Candle, error) {
	if f.selErr != nil {
		return nil, f.selErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Candle
	for _, c := range f.rows {
		if c.Symbol == symbol && c.Timeframe == string(tf) && !c.Time.Before(from) && !c.Time.After(to) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (f *fakeHot) SelectBefore(_ context.Context, cutoff time.Time, limit int) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Candle
	for _, c := range f.rows {
		if c.Time.Before(cutoff) {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeHot) DeleteRows(_ context.Context, rows []models.Candle) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range rows {
		k := hotKey(c.Symbol, c.Timeframe, c.Time)
		if _, ok := f.rows[k]; ok {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

type fakeCold struct {
	rows      []models.Candle
	insertErr error
	inserted  [][]models.Candle
}

func (f *fakeCold) SelectRange(_ context.Context, symbol string, tf domrepo.Timeframe, from, to time.Time) ([]models.Candle, error) {
	var out []models.Candle
	for _, c := range f.rows {
		if c.Symbol == symbol && c.Timeframe == string(tf) && !c.Time.Before(from) && !c.Time.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCold) InsertBatch(_ context.Context, candles []models.Candle) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, candles)
	f.rows = append(f.rows, candles...)
	return nil
}

type fakeExchange struct {
	candles []models.Candle
	err     error
	calls   int
}

func (f *fakeExchange) FetchCandles(_ context.Context, _ string, _ domrepo.Timeframe, since time.Time, limit int) ([]models.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Candle
	for _, c := range f.candles {
		if !c.Time.Before(since) {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeCache struct {
	mu    sync.Mutex
	ticks map[string]models.LiveTick
}

func newFakeCache() *fakeCache {
	return &fakeCache{ticks: make(map[string]models.LiveTick)}
}

func (f *fakeCache) Get(_ context.Context, symbol string) (models.LiveTick, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.ticks[symbol]
	return t, ok, nil
}

func (f *fakeCache) Set(_ context.Context, tick models.LiveTick) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks[tick.Symbol] = tick
	return nil
}

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	sent   int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: make(map[string]int)}
}

func (m *fakeMetrics) RecordMessageSent(string, string) {
	m.mu.Lock()
	m.sent++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLastPrice(string, float64)  {}
func (m *fakeMetrics) RecordLatency(string, float64)    {}
func (m *fakeMetrics) RecordRepair(string)              {}
func (m *fakeMetrics) RecordGapFilled(string, int)      {}

var errDown = errors.New("venue down")
