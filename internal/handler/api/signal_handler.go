package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/internal/services/timing"
	"FinSignal/internal/usecase"
	xhttp "FinSignal/pkg/http"
	applogger "FinSignal/pkg/logger"
	xutil "FinSignal/pkg/util"
)

// HealthCheck reports a dependency problem as an error.
type HealthCheck func(ctx context.Context) error

// SignalHandler serves the signal API.
type SignalHandler struct {
	log     *applogger.Logger
	query   *usecase.SignalQuery
	history domrepo.CandleHistory
	symbol  string
	checks  map[string]HealthCheck
}

// NewSignalHandler builds the handler. history may be nil; ranged candle
// queries then fall back to live candles.
func NewSignalHandler(log *applogger.Logger, query *usecase.SignalQuery, history domrepo.CandleHistory, symbol string) *SignalHandler {
	return &SignalHandler{log: log, query: query, history: history, symbol: symbol, checks: map[string]HealthCheck{}}
}

// AddHealthCheck registers a named check run by /healthz.
func (h *SignalHandler) AddHealthCheck(name string, check HealthCheck) {
	if check != nil {
		h.checks[name] = check
	}
}

func (h *SignalHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/signal/latest", h.LatestSignal)
	g.GET("/regime", h.Regime)
	g.GET("/agent", h.Agent)
	g.GET("/candles", h.Candles)
	g.POST("/outcome", h.Outcome)
	g.POST("/analyze", h.Analyze)
}

func (h *SignalHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	report := models.HealthReport{Status: "ok", Checks: map[string]string{}}
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			report.Status = "degraded"
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}
	if report.Status != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, report)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *SignalHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.query.Status())
}

func (h *SignalHandler) LatestSignal(c echo.Context) error {
	s, err := h.query.LatestSignal(c.Request().Context())
	if err != nil {
		h.log.Error("latest signal", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("ERR_STORE", "signal store unavailable").WithError(err))
	}
	if s == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no signal published yet"))
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *SignalHandler) Regime(c echo.Context) error {
	r, ok := h.query.Regime()
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("regime not classified yet"))
	}
	return xhttp.SuccessResponse(c, r)
}

func (h *SignalHandler) Agent(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.query.AgentStats())
}

func (h *SignalHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.From == "" {
		return xhttp.SuccessResponse(c, h.query.Candles(req.N))
	}
	from, ok := xutil.ParseTime(req.From)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must be RFC3339 or a unix timestamp").WithParam("from", req.From))
	}
	to := xutil.ParseTimeDefault(req.To, time.Now())
	if !to.After(from) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("to must be after from"))
	}
	from, to = xutil.AlignMinutes(from, to)
	if h.history != nil {
		out, err := h.history.CandlesBetween(c.Request().Context(), h.symbol, from, to)
		if err != nil {
			h.log.Error("candle history", applogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.UnavailableError("ERR_HISTORY", "candle history unavailable").WithError(err))
		}
		return xhttp.SuccessResponse(c, out)
	}
	return xhttp.SuccessResponse(c, candlesInRange(h.query.Candles(req.N), from, to))
}

func candlesInRange(in []models.Candle, from, to time.Time) []models.Candle {
	out := make([]models.Candle, 0, len(in))
	lo, hi := from.UnixMilli(), to.UnixMilli()
	for _, c := range in {
		if c.OpenTime >= lo && c.OpenTime < hi {
			out = append(out, c)
		}
	}
	return out
}

func (h *SignalHandler) Outcome(c echo.Context) error {
	req := &models.OutcomeRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	err := h.query.VerifyOutcome(req.SignalID, models.Result(req.Result))
	if errors.Is(err, usecase.ErrUnknownSignal) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("signal is not awaiting an outcome").WithParam("signalId", req.SignalID))
	}
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	h.log.Info("outcome reported over http",
		applogger.String("id", req.SignalID),
		applogger.String("result", req.Result),
	)
	return xhttp.SuccessResponse(c, h.query.AgentStats())
}

func (h *SignalHandler) Analyze(c echo.Context) error {
	action, err := h.query.Analyze()
	switch {
	case err == nil:
		return xhttp.AcceptedResponse(c, models.AnalyzeResponse{Candidate: action})
	case errors.Is(err, usecase.ErrWarmingUp):
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("ERR_WARMING_UP", err.Error()))
	case errors.Is(err, usecase.ErrSignalLocked):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("ERR_SIGNAL_LOCKED", err.Error()))
	case errors.Is(err, timing.ErrWindowActive):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("ERR_WINDOW_ACTIVE", err.Error()))
	case errors.Is(err, usecase.ErrNoCandidate):
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_NO_CANDIDATE", "", err.Error(), http.StatusUnprocessableEntity))
	default:
		h.log.Error("analyze", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("analysis failed"))
	}
}
