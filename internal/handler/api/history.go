package api

import (
	"errors"
	"time"

	models "CandleKeep/internal/domain/models"
	domrepo "CandleKeep/internal/domain/repository"
	"CandleKeep/internal/usecase"
	xhttp "CandleKeep/pkg/http"
	xlogger "CandleKeep/pkg/logger"
	xutil "CandleKeep/pkg/util"

	"github.com/labstack/echo/v4"
)

// HistoryHandler exposes the continuous history assembler over HTTP.
type HistoryHandler struct {
	logger  *xlogger.Logger
	history *usecase.HistoryUseCase
}

func NewHistoryHandler(logger *xlogger.Logger, history *usecase.HistoryUseCase) *HistoryHandler {
	return &HistoryHandler{logger: logger, history: history}
}

func (h *HistoryHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/history", h.History)
}

func (h *HistoryHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	tf := domrepo.NormalizeTimeframe(req.TF)
	now := time.Now().UTC()
	from := xhttp.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(req.To, now)
	if from.After(to) {
		return xhttp.BadRequestResponse(c, "from must be before to")
	}
	// Snap the window to bucket boundaries so a request at 10:47 asks the
	// store for the 10:00 bucket, not a partial one.
	if d, ok := tf.Duration(); ok {
		from, to = xutil.AlignRange(from, to, d)
	}

	candles, err := h.history.GetContinuousHistory(c.Request().Context(), usecase.GetHistoryParams{
		Symbol:    req.Symbol,
		Timeframe: tf,
		From:      from,
		To:        to,
	})
	if err != nil {
		if errors.Is(err, domrepo.ErrRetryableUnavailable) {
			// Repair was issued; the retry observes consistent data.
			return xhttp.UnavailableResponse(c, "data gap repair in progress, retry shortly")
		}
		h.logger.Error("history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	return xhttp.SuccessResponse(c, &models.HistoryResponse{
		Symbol:    req.Symbol,
		Timeframe: string(tf),
		Count:     len(candles),
		Candles:   candles,
	})
}
