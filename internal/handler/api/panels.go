package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	models "PanelPull/internal/domain/models"
	domrepo "PanelPull/internal/domain/repository"
	icache "PanelPull/internal/service/cache"
	"PanelPull/internal/service/metrics"
	"PanelPull/internal/service/ratelimit"
	"PanelPull/internal/usecase"
	xhttp "PanelPull/pkg/http"
	xlogger "PanelPull/pkg/logger"
	xutil "PanelPull/pkg/util"

	"github.com/labstack/echo/v4"
)

// PanelsHandler implements Echo-based HTTP handlers following Clean Architecture.
type PanelsHandler struct {
	logger *xlogger.Logger
	svc    *usecase.PanelService
	cache  icache.ResponseCache
	rl     *ratelimit.Limiter

	responseTTL time.Duration
	rlCapacity  float64
	rlRefill    float64
}

// PanelsHandlerConfig tunes response caching and the covariance rate limit.
type PanelsHandlerConfig struct {
	ResponseTTL       time.Duration
	RateLimitCapacity float64
	RateLimitRefill   float64
}

func NewPanelsHandler(logger *xlogger.Logger, svc *usecase.PanelService, cache icache.ResponseCache, rl *ratelimit.Limiter, cfg PanelsHandlerConfig) *PanelsHandler {
	if cfg.ResponseTTL <= 0 {
		cfg.ResponseTTL = 30 * time.Second
	}
	if cfg.RateLimitCapacity <= 0 {
		cfg.RateLimitCapacity = 5
	}
	if cfg.RateLimitRefill <= 0 {
		cfg.RateLimitRefill = 0.5
	}
	metrics.Register()
	return &PanelsHandler{
		logger:      logger,
		svc:         svc,
		cache:       cache,
		rl:          rl,
		responseTTL: cfg.ResponseTTL,
		rlCapacity:  cfg.RateLimitCapacity,
		rlRefill:    cfg.RateLimitRefill,
	}
}

func (h *PanelsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/symbols", h.Symbols)
	g.GET("/market", h.Market)
	g.GET("/features", h.Features)
	g.GET("/returns", h.Returns)
	g.GET("/covariance", h.Covariance)
}

func (h *PanelsHandler) Symbols(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.PanelLatency.WithLabelValues("symbols").Observe(time.Since(start).Seconds()) }()

	req := &models.SymbolsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	syms, err := h.svc.Symbols(c.Request().Context(), req.Pattern)
	if err != nil {
		return h.fail(c, "symbols", err)
	}
	return xhttp.ListResponse(c, syms, int64(len(syms)))
}

func (h *PanelsHandler) Market(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.PanelLatency.WithLabelValues("market").Observe(time.Since(start).Seconds()) }()

	req := &models.PanelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, aerr := h.panelParams(c, req)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}

	key := responseKey("market", req.Symbols, req.Start, req.End, req.Interval, 0)
	if b, ok := h.cached(c, key); ok {
		metrics.PanelCacheHits.WithLabelValues("market").Inc()
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.svc.LoadMarketData(c.Request().Context(), params)
	if err != nil {
		return h.fail(c, "market", err)
	}
	h.store(c, key, res)
	h.setCacheControl(c)
	return xhttp.SuccessResponse(c, res)
}

func (h *PanelsHandler) Features(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.PanelLatency.WithLabelValues("features").Observe(time.Since(start).Seconds()) }()

	req := &models.PanelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, aerr := h.panelParams(c, req)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}

	key := responseKey("features", req.Symbols, req.Start, req.End, req.Interval, 0)
	if b, ok := h.cached(c, key); ok {
		metrics.PanelCacheHits.WithLabelValues("features").Inc()
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.svc.LoadFeatures(c.Request().Context(), params)
	if err != nil {
		return h.fail(c, "features", err)
	}
	h.store(c, key, res)
	h.setCacheControl(c)
	return xhttp.SuccessResponse(c, res)
}

func (h *PanelsHandler) Returns(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.PanelLatency.WithLabelValues("returns").Observe(time.Since(start).Seconds()) }()

	req := &models.PanelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, aerr := h.panelParams(c, req)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}

	key := responseKey("returns", req.Symbols, req.Start, req.End, req.Interval, 0)
	if b, ok := h.cached(c, key); ok {
		metrics.PanelCacheHits.WithLabelValues("returns").Inc()
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.svc.LoadReturns(c.Request().Context(), params)
	if err != nil {
		return h.fail(c, "returns", err)
	}
	h.store(c, key, res)
	h.setCacheControl(c)
	return xhttp.SuccessResponse(c, res)
}

func (h *PanelsHandler) Covariance(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.PanelLatency.WithLabelValues("covariance").Observe(time.Since(start).Seconds()) }()

	if h.rl != nil && !h.rl.Allow(c.RealIP()+":covariance", h.rlCapacity, h.rlRefill) {
		return xhttp.TooManyRequestsResponse(c)
	}

	req := &models.CovarianceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, aerr := h.panelParams(c, &models.PanelRequest{
		Symbols:  req.Symbols,
		Start:    req.Start,
		End:      req.End,
		Interval: req.Interval,
	})
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}

	key := responseKey("covariance", req.Symbols, req.Start, req.End, req.Interval, req.Window)
	if b, ok := h.cached(c, key); ok {
		metrics.PanelCacheHits.WithLabelValues("covariance").Inc()
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.svc.LoadCovariance(c.Request().Context(), params, req.Window)
	if err != nil {
		return h.fail(c, "covariance", err)
	}
	h.store(c, key, res)
	h.setCacheControl(c)
	return xhttp.SuccessResponse(c, res)
}

// panelParams resolves the request into usecase params. An empty symbols list
// falls back to the glob-discovered universe.
func (h *PanelsHandler) panelParams(c echo.Context, req *models.PanelRequest) (usecase.PanelParams, error) {
	start, ok := xutil.ParseTime(req.Start)
	if !ok {
		return usecase.PanelParams{}, xhttp.BadRequestError("invalid start time").WithParam("start", req.Start)
	}
	end, ok := xutil.ParseTime(req.End)
	if !ok {
		return usecase.PanelParams{}, xhttp.BadRequestError("invalid end time").WithParam("end", req.End)
	}
	if start.After(end) {
		return usecase.PanelParams{}, xhttp.BadRequestError("start must be before end")
	}

	syms := xutil.SplitTrim(req.Symbols, ",")
	if len(syms) == 0 {
		var err error
		syms, err = h.svc.Symbols(c.Request().Context(), "")
		if err != nil {
			return usecase.PanelParams{}, xhttp.InternalError("symbol discovery failed").WithError(err)
		}
		if len(syms) == 0 {
			return usecase.PanelParams{}, xhttp.NotFoundError("no symbols match the universe pattern")
		}
	}

	return usecase.PanelParams{
		Symbols:  syms,
		Start:    start,
		End:      end,
		Interval: domrepo.NormalizeInterval(req.Interval),
	}, nil
}

func (h *PanelsHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.PanelErrors.WithLabelValues(endpoint).Inc()
	h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	if errors.Is(err, domrepo.ErrSymbolNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("symbol has no backing data").WithError(err))
	}
	return xhttp.AppErrorResponse(c, err)
}

func (h *PanelsHandler) cached(c echo.Context, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.Get(c.Request().Context(), key)
	if err != nil || !ok {
		return nil, false
	}
	return b, true
}

func (h *PanelsHandler) store(c echo.Context, key string, data interface{}) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(xhttp.APIResponse{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
	if err != nil {
		return
	}
	if err := h.cache.Set(c.Request().Context(), key, b, h.responseTTL); err != nil {
		h.logger.Warn("response cache store failed", xlogger.Error(err))
	}
}

func (h *PanelsHandler) setCacheControl(c echo.Context) {
	c.Response().Header().Set(echo.HeaderCacheControl, fmt.Sprintf("private, max-age=%d", int(h.responseTTL.Seconds())))
}

func responseKey(endpoint, symbols, start, end, interval string, window int) string {
	return fmt.Sprintf("resp:%s:%s:%s:%s:%s:%d", endpoint, symbols, start, end, interval, window)
}
