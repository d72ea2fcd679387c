package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"CandleKeep/internal/domain/models"
	domrepo "CandleKeep/internal/domain/repository"
)

type stubClient struct {
	candles []models.Candle
	err     error
	calls   int
}

func (s *stubClient) FetchCandles(context.Context, string, domrepo.Timeframe, time.Time, int) ([]models.Candle, error) {
	s.calls++
	return s.candles, s.err
}

func TestFacadePrimaryWins(t *testing.T) {
	primary := &stubClient{candles: []models.Candle{{Symbol: "BTCUSDT", Close: 1}}}
	fallback := &stubClient{}
	f := NewFacade(primary, fallback, nil, nil)

	out, err := f.FetchCandles(context.Background(), "BTCUSDT", domrepo.TF1h, time.Now(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || fallback.calls != 0 {
		t.Fatalf("fallback must stay untouched when primary succeeds")
	}
}

func TestFacadeFallsBack(t *testing.T) {
	primary := &stubClient{err: errors.New("binance 502")}
	fallback := &stubClient{candles: []models.Candle{{Symbol: "BTCUSDT", Close: 2}}}
	f := NewFacade(primary, fallback, nil, nil)

	out, err := f.FetchCandles(context.Background(), "BTCUSDT", domrepo.TF1h, time.Now(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Close != 2 {
		t.Fatalf("expected fallback data, got %+v", out)
	}
}

func TestFacadeAllVenuesFail(t *testing.T) {
	f := NewFacade(&stubClient{err: errors.New("down")}, &stubClient{err: errors.New("also down")}, nil, nil)
	if _, err := f.FetchCandles(context.Background(), "BTCUSDT", domrepo.TF1h, time.Now(), 10); err == nil {
		t.Fatal("expected error when all venues fail")
	}
}

func TestKucoinSymbolConversion(t *testing.T) {
	cases := map[string]string{
		"BTCUSDT":  "BTC-USDT",
		"ETH-USDT": "ETH-USDT",
		"SOLUSDC":  "SOL-USDC",
	}
	for in, want := range cases {
		if got := toKucoinSymbol(in); got != want {
			t.Errorf("toKucoinSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}
