package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"CandleKeep/internal/domain/models"
	domrepo "CandleKeep/internal/domain/repository"
	"CandleKeep/internal/service/ratelimit"
	pkghttp "CandleKeep/pkg/http"
)

// binanceIntervals maps our timeframe names to Binance kline intervals.
// The names happen to match.
var binanceIntervals = map[domrepo.Timeframe]string{
	domrepo.TF1m:  "1m",
	domrepo.TF5m:  "5m",
	domrepo.TF15m: "15m",
	domrepo.TF30m: "30m",
	domrepo.TF1h:  "1h",
	domrepo.TF4h:  "4h",
	domrepo.TF1d:  "1d",
	domrepo.TF1w:  "1w",
}

// BinanceClient fetches historical klines from the Binance REST API.
type BinanceClient struct {
	baseURL string
	http    *pkghttp.Client
	limiter *ratelimit.Limiter
	rateCap float64
	rateRef float64
}

// NewBinanceClient creates a Binance kline client.
func NewBinanceClient(baseURL string, client *pkghttp.Client, limiter *ratelimit.Limiter, rateCap, ratePerSec float64) *BinanceClient {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	if rateCap <= 0 {
		rateCap = 10
	}
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	return &BinanceClient{baseURL: baseURL, http: client, limiter: limiter, rateCap: rateCap, rateRef: ratePerSec}
}

// FetchCandles returns klines ordered oldest first.
func (c *BinanceClient) FetchCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, since time.Time, limit int) ([]models.Candle, error) {
	interval, ok := binanceIntervals[tf]
	if !ok {
		return nil, fmt.Errorf("binance: unsupported timeframe %q", tf)
	}
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	if err := waitAllowed(ctx, c.limiter, "binance", c.rateCap, c.rateRef); err != nil {
		return nil, err
	}

	var raw [][]json.RawMessage
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":    {symbol},
			"interval":  {interval},
			"startTime": {strconv.FormatInt(since.UTC().UnixMilli(), 10)},
			"limit":     {strconv.Itoa(limit)},
		},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}

	candles := make([]models.Candle, 0, len(raw))
	for _, row := range raw {
		// [openTime(ms), open, high, low, close, volume, ...] with prices as
		// strings.
		if len(row) < 6 {
			continue
		}
		var openMS int64
		if err := json.Unmarshal(row[0], &openMS); err != nil {
			continue
		}
		open, err1 := parseQuoted(row[1])
		high, err2 := parseQuoted(row[2])
		low, err3 := parseQuoted(row[3])
		closeP, err4 := parseQuoted(row[4])
		volume, err5 := parseQuoted(row[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		candles = append(candles, models.Candle{
			Time:      time.UnixMilli(openMS).UTC(),
			Symbol:    symbol,
			Timeframe: string(tf),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closeP,
			Volume:    volume,
		})
	}
	return candles, nil
}

// parseQuoted parses a JSON string-encoded decimal like "50123.45".
func parseQuoted(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// some fields arrive as bare numbers
		var f float64
		if err2 := json.Unmarshal(raw, &f); err2 != nil {
			return 0, err
		}
		return f, nil
	}
	return strconv.ParseFloat(s, 64)
}

// waitAllowed blocks until the limiter grants a token or ctx is done.
func waitAllowed(ctx context.Context, l *ratelimit.Limiter, key string, capacity, refill float64) error {
	if l == nil {
		return nil
	}
	for !l.Allow(key, capacity, refill) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}
