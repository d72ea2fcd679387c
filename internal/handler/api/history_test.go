package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CandleKeep/internal/domain/models"
	domrepo "CandleKeep/internal/domain/repository"
	"CandleKeep/internal/service/reconcile"
	"CandleKeep/internal/usecase"
	applogger "CandleKeep/pkg/logger"

	"github.com/labstack/echo/v4"
)

type stubHot struct {
	rows    []models.Candle
	gotFrom time.Time
	gotTo   time.Time
}

func (s *stubHot) UpsertIgnore(context.Context, models.Candle) error    { return nil }
func (s *stubHot) UpsertOverwrite(context.Context, models.Candle) error { return nil }
func (s *stubHot) ApplyTick(context.Context, string, domrepo.Timeframe, time.Time, float64, float64) error {
	return nil
}

func (s *stubHot) SelectRange(_ context.Context, _ string, _ domrepo.Timeframe, from, to time.Time) ([]models.Candle, error) {
	s.gotFrom, s.gotTo = from, to
	return s.rows, nil
}

func (s *stubHot) SelectBefore(context.Context, time.Time, int) ([]models.Candle, error) {
	return nil, nil
}

func (s *stubHot) DeleteRows(context.Context, []models.Candle) (int64, error) { return 0, nil }

type stubCold struct{}

func (stubCold) SelectRange(context.Context, string, domrepo.Timeframe, time.Time, time.Time) ([]models.Candle, error) {
	return nil, nil
}
func (stubCold) InsertBatch(context.Context, []models.Candle) error { return nil }

type stubExchange struct{}

func (stubExchange) FetchCandles(context.Context, string, domrepo.Timeframe, time.Time, int) ([]models.Candle, error) {
	return nil, nil
}

type stubCache struct{}

func (stubCache) Get(context.Context, string) (models.LiveTick, bool, error) {
	return models.LiveTick{}, false, nil
}
func (stubCache) Set(context.Context, models.LiveTick) error { return nil }

func newTestHandler(hot *stubHot) *HistoryHandler {
	uc := usecase.NewHistoryUseCase(
		hot, stubCold{}, stubExchange{},
		reconcile.NewAnomalyCleaner(stubExchange{}, hot, nil, nil),
		reconcile.NewBridge(stubExchange{}, hot, nil, nil, 50),
		reconcile.NewLiveAppender(stubCache{}, nil),
		reconcile.NewValidator(stubExchange{}, hot, nil, nil, 5),
		nil, nil, 1000,
	)
	l, _ := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	return NewHistoryHandler(l, uc)
}

func TestHistoryAlignsRangeToBuckets(t *testing.T) {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Add(-time.Hour)
	hot := &stubHot{rows: []models.Candle{{
		Time: bucket, Symbol: "BTCUSDT", Timeframe: "1h",
		Open: 100, High: 110, Low: 90, Close: 105, Volume: 1,
	}}}
	h := newTestHandler(hot)

	e := echo.New()
	h.RegisterRoutes(e)

	from := bucket.Add(-2*time.Hour + 47*time.Minute + 33*time.Second)
	to := bucket.Add(5 * time.Minute)
	target := "/api/v1/history?symbol=BTCUSDT&timeframe=1h" +
		"&from=" + from.Format(time.RFC3339) + "&to=" + to.Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !hot.gotFrom.Equal(from.Truncate(time.Hour)) {
		t.Fatalf("from not aligned: got %v", hot.gotFrom)
	}
	if !hot.gotTo.Equal(to.Truncate(time.Hour)) {
		t.Fatalf("to not aligned: got %v", hot.gotTo)
	}
	if !strings.Contains(rec.Body.String(), "BTCUSDT") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHistoryRejectsInvertedRange(t *testing.T) {
	h := newTestHandler(&stubHot{})
	e := echo.New()
	h.RegisterRoutes(e)

	now := time.Now().UTC()
	target := "/api/v1/history?symbol=BTCUSDT&timeframe=1h" +
		"&from=" + now.Format(time.RFC3339) + "&to=" + now.Add(-time.Hour).Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// Errors ride inside the envelope; transport status stays 200.
	if rec.Code != http.StatusOK {
		t.Fatalf("transport status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":400`) {
		t.Fatalf("envelope status not 400: %s", rec.Body.String())
	}
}
