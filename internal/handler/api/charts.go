package api

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"SensorPull/internal/domain/models"
	domrepo "SensorPull/internal/domain/repository"
	"SensorPull/internal/handler/ws"
	"SensorPull/internal/service/ratelimit"
	"SensorPull/internal/usecase"
	xhttp "SensorPull/pkg/http"
	xlogger "SensorPull/pkg/logger"
	"SensorPull/pkg/util"
)

// ChartView is a configured chart with its session state.
type ChartView struct {
	models.Chart
	Running   bool       `json:"running"`
	SessionID string     `json:"session_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// ChartsHandler serves the chart session API.
type ChartsHandler struct {
	logger   *xlogger.Logger
	charts   map[int64]models.Chart
	sessions *usecase.Sessions
	store    domrepo.ForecastStore
	hub      *ws.Hub
	archive  domrepo.SampleArchive
	limiter  *ratelimit.Limiter
}

// NewChartsHandler creates the handler. archive may be nil when no archive is configured.
func NewChartsHandler(
	logger *xlogger.Logger,
	charts []models.Chart,
	sessions *usecase.Sessions,
	store domrepo.ForecastStore,
	hub *ws.Hub,
	archive domrepo.SampleArchive,
	limiter *ratelimit.Limiter,
) *ChartsHandler {
	byID := make(map[int64]models.Chart, len(charts))
	for _, c := range charts {
		byID[c.ID] = c
	}
	return &ChartsHandler{
		logger:   logger,
		charts:   byID,
		sessions: sessions,
		store:    store,
		hub:      hub,
		archive:  archive,
		limiter:  limiter,
	}
}

func (h *ChartsHandler) RegisterRoutes(e *echo.Echo) {
	var control []echo.MiddlewareFunc
	if h.limiter != nil {
		control = append(control, h.limiter.Middleware())
	}

	g := e.Group("/api/charts")
	g.GET("", h.List)
	g.POST("/:id/start", h.Start, control...)
	g.POST("/:id/stop", h.Stop, control...)
	g.GET("/:id/watermarks", h.Watermarks)
	g.GET("/:id/forecast", h.Forecast)
	g.GET("/:id/history", h.History)
	g.GET("/:id/stream", h.Stream)
}

func (h *ChartsHandler) List(c echo.Context) error {
	ids := make([]int64, 0, len(h.charts))
	for id := range h.charts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]ChartView, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, h.view(h.charts[id]))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ChartsHandler) Start(c echo.Context) error {
	req := &models.ChartRequest{}
	if ferrs := xhttp.BindRequest(c, req); ferrs != nil {
		return xhttp.BadRequestResponse(c, ferrs)
	}
	chart, ok := h.charts[req.ID]
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("chart %d not found", req.ID))
	}

	if _, err := h.sessions.Start(c.Request().Context(), chart); err != nil {
		if errors.Is(err, usecase.ErrSessionRunning) {
			return xhttp.AppErrorResponse(c, xhttp.ConflictErrorf("chart %d already running", req.ID))
		}
		h.logger.Error("chart start failed", xlogger.Int64("chart_id", req.ID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, h.view(chart))
}

func (h *ChartsHandler) Stop(c echo.Context) error {
	req := &models.ChartRequest{}
	if ferrs := xhttp.BindRequest(c, req); ferrs != nil {
		return xhttp.BadRequestResponse(c, ferrs)
	}
	if err := h.sessions.Stop(req.ID); err != nil {
		if errors.Is(err, usecase.ErrSessionNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("chart %d not running", req.ID))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.view(h.charts[req.ID]))
}

func (h *ChartsHandler) Watermarks(c echo.Context) error {
	req := &models.ChartRequest{}
	if ferrs := xhttp.BindRequest(c, req); ferrs != nil {
		return xhttp.BadRequestResponse(c, ferrs)
	}
	sess, ok := h.sessions.Get(req.ID)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("chart %d not running", req.ID))
	}
	rows := sess.Watermarks.Snapshot()
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ChartsHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if ferrs := xhttp.BindRequest(c, req); ferrs != nil {
		return xhttp.BadRequestResponse(c, ferrs)
	}
	if _, appErr := h.source(req.ID, req.SourceID); appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}

	state, ok, err := h.store.Latest(c.Request().Context(), req.ID, req.SourceID)
	if err != nil {
		h.logger.Error("forecast lookup failed", xlogger.Int64("chart_id", req.ID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("forecast store unavailable").WithError(err))
	}
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no forecast yet for chart %d source %d", req.ID, req.SourceID))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, state)
}

// History reads archived samples of one source. from/to accept RFC3339 or unix
// seconds/milliseconds and default to the last hour.
func (h *ChartsHandler) History(c echo.Context) error {
	req := &models.ChartRequest{}
	if ferrs := xhttp.BindRequest(c, req); ferrs != nil {
		return xhttp.BadRequestResponse(c, ferrs)
	}
	if h.archive == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("sample archive disabled"))
	}
	sourceID := util.ParseIntDefault(c.QueryParam("source"), int64(0))
	if sourceID <= 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("source is required"))
	}
	if _, appErr := h.source(req.ID, sourceID); appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}

	now := time.Now().UTC()
	r := xhttp.TimeRange{
		From: util.ParseTimeDefault(c.QueryParam("from"), now.Add(-time.Hour)),
		To:   util.ParseTimeDefault(c.QueryParam("to"), now),
	}
	if !r.Valid() {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("from must be before to"))
	}
	limit := util.ParseIntDefault(c.QueryParam("limit"), 500)
	if limit <= 0 || limit > 5000 {
		limit = 500
	}

	rows, err := h.archive.Query(c.Request().Context(), sourceID, r.From, r.To, limit)
	if err != nil {
		h.logger.Error("history query failed", xlogger.Int64("source_id", sourceID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("sample archive unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Stream upgrades to a websocket that receives the chart's batches and forecasts.
func (h *ChartsHandler) Stream(c echo.Context) error {
	req := &models.StreamRequest{}
	if ferrs := xhttp.BindRequest(c, req); ferrs != nil {
		return xhttp.BadRequestResponse(c, ferrs)
	}
	if _, ok := h.charts[req.ID]; !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("chart %d not found", req.ID))
	}
	if err := h.hub.Serve(c.Response(), c.Request(), req.ID, req.Buffer); err != nil {
		// the upgrader already wrote the error response
		h.logger.Debug("stream upgrade failed", xlogger.Int64("chart_id", req.ID), xlogger.Error(err))
	}
	return nil
}

func (h *ChartsHandler) source(chartID, sourceID int64) (models.DataSource, *xhttp.AppError) {
	chart, ok := h.charts[chartID]
	if !ok {
		return models.DataSource{}, xhttp.NotFoundErrorf("chart %d not found", chartID)
	}
	for _, ds := range chart.DataSources {
		if ds.ID == sourceID {
			return ds, nil
		}
	}
	return models.DataSource{}, xhttp.NotFoundErrorf("source %d not in chart %d", sourceID, chartID)
}

func (h *ChartsHandler) view(chart models.Chart) ChartView {
	v := ChartView{Chart: chart}
	if s, ok := h.sessions.Get(chart.ID); ok {
		v.Running = true
		v.SessionID = s.ID
		started := s.StartedAt
		v.StartedAt = &started
	}
	return v
}

// StartConfigured starts a session for every configured chart and returns the first error.
func (h *ChartsHandler) StartConfigured(ctx context.Context) error {
	ids := make([]int64, 0, len(h.charts))
	for id := range h.charts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if _, err := h.sessions.Start(ctx, h.charts[id]); err != nil && !errors.Is(err, usecase.ErrSessionRunning) {
			return err
		}
	}
	return nil
}

var _ xhttp.RouteRegistrar = (*ChartsHandler)(nil)
