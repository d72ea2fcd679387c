package exchange

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"CandleKeep/internal/domain/models"
	domrepo "CandleKeep/internal/domain/repository"
	"CandleKeep/internal/service/ratelimit"
	pkghttp "CandleKeep/pkg/http"
)

var kucoinIntervals = map[domrepo.Timeframe]string{
	domrepo.TF1m:  "1min",
	domrepo.TF5m:  "5min",
	domrepo.TF15m: "15min",
	domrepo.TF30m: "30min",
	domrepo.TF1h:  "1hour",
	domrepo.TF4h:  "4hour",
	domrepo.TF1d:  "1day",
	domrepo.TF1w:  "1week",
}

// KucoinClient fetches historical klines from the KuCoin REST API. It is the
// fallback venue behind the facade.
type KucoinClient struct {
	baseURL string
	http    *pkghttp.Client
	limiter *ratelimit.Limiter
	rateCap float64
	rateRef float64
}

// NewKucoinClient creates a KuCoin kline client.
func NewKucoinClient(baseURL string, client *pkghttp.Client, limiter *ratelimit.Limiter, rateCap, ratePerSec float64) *KucoinClient {
	if baseURL == "" {
		baseURL = "https://api.kucoin.com"
	}
	if rateCap <= 0 {
		rateCap = 10
	}
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	return &KucoinClient{baseURL: baseURL, http: client, limiter: limiter, rateCap: rateCap, rateRef: ratePerSec}
}

type kucoinKlinesResp struct {
	Code string     `json:"code"`
	Data [][]string `json:"data"`
}

// FetchCandles returns klines ordered oldest first. KuCoin symbols are
// dash-separated (BTC-USDT); Binance-style symbols are converted.
func (c *KucoinClient) FetchCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, since time.Time, limit int) ([]models.Candle, error) {
	interval, ok := kucoinIntervals[tf]
	if !ok {
		return nil, fmt.Errorf("kucoin: unsupported timeframe %q", tf)
	}
	d, _ := tf.Duration()
	if limit <= 0 || limit > 1500 {
		limit = 1500
	}
	if err := waitAllowed(ctx, c.limiter, "kucoin", c.rateCap, c.rateRef); err != nil {
		return nil, err
	}

	var resp kucoinKlinesResp
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.baseURL + "/api/v1/market/candles",
		QueryParams: map[string][]string{
			"symbol":  {toKucoinSymbol(symbol)},
			"type":    {interval},
			"startAt": {strconv.FormatInt(since.UTC().Unix(), 10)},
			"endAt":   {strconv.FormatInt(since.UTC().Add(time.Duration(limit)*d).Unix(), 10)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("kucoin klines: %w", err)
	}
	if resp.Code != "200000" {
		return nil, fmt.Errorf("kucoin klines: code %s", resp.Code)
	}

	// rows arrive newest first: [ts, open, close, high, low, volume, turnover]
	candles := make([]models.Candle, 0, len(resp.Data))
	for _, row := range resp.Data {
		if len(row) < 6 {
			continue
		}
		ts, err0 := strconv.ParseInt(row[0], 10, 64)
		open, err1 := strconv.ParseFloat(row[1], 64)
		closeP, err2 := strconv.ParseFloat(row[2], 64)
		high, err3 := strconv.ParseFloat(row[3], 64)
		low, err4 := strconv.ParseFloat(row[4], 64)
		volume, err5 := strconv.ParseFloat(row[5], 64)
		if err0 != nil || err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		candles = append(candles, models.Candle{
			Time:      time.Unix(ts, 0).UTC(),
			Symbol:    symbol,
			Timeframe: string(tf),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closeP,
			Volume:    volume,
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	if len(candles) > limit {
		candles = candles[:limit]
	}
	return candles, nil
}

// toKucoinSymbol converts BTCUSDT to BTC-USDT. Symbols already containing a
// dash pass through.
func toKucoinSymbol(symbol string) string {
	if strings.Contains(symbol, "-") {
		return symbol
	}
	for _, quote := range []string{"USDT", "USDC", "BTC", "ETH"} {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			return symbol[:len(symbol)-len(quote)] + "-" + quote
		}
	}
	return symbol
}
