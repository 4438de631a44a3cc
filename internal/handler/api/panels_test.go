package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"PanelPull/internal/repository"
	icache "PanelPull/internal/service/cache"
	"PanelPull/internal/service/ratelimit"
	"PanelPull/internal/usecase"
	xlogger "PanelPull/pkg/logger"
	"PanelPull/pkg/queue"
)

type nopMetrics struct{}

func (nopMetrics) RecordSymbolLoaded(string)      {}
func (nopMetrics) RecordCacheRequest(string)      {}
func (nopMetrics) RecordPanelBuilt(string)        {}
func (nopMetrics) RecordPanelRows(string, int)    {}
func (nopMetrics) RecordDuration(string, float64) {}

type noFeatures struct{}

func (noFeatures) Derive(_, _, _, _, _ []float64) map[string][]float64 {
	return map[string][]float64{}
}

// writeBars emits an hourly CSV for symbol starting at start, one row per
// close, in the source's time, open, close, high, low, volume column order.
func writeBars(t *testing.T, dir, symbol string, start time.Time, closes []float64) {
	t.Helper()
	var b strings.Builder
	for i, c := range closes {
		ts := start.Add(time.Duration(i) * time.Hour).UnixMilli()
		fmt.Fprintf(&b, "%d,%v,%v,%v,%v,%v\n", ts, c, c, c, c, 1.0)
	}
	if err := os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write bars: %v", err)
	}
}

func newTestServer(t *testing.T, dir string) *echo.Echo {
	t.Helper()

	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	src := repository.NewCSVBarSource(dir)
	pool := queue.NewPool(queue.Config{Workers: 2, QueueSize: 8})
	t.Cleanup(pool.Stop)

	svc := usecase.NewPanelService(usecase.PanelServiceParams{
		Loader:  usecase.NewSymbolLoader(src, noFeatures{}, nil, nopMetrics{}, nil, 2, 0),
		Source:  src,
		Pool:    pool,
		Metrics: nopMetrics{},
		Window:  3,
		Pattern: "*usd",
	})

	h := NewPanelsHandler(l, svc, icache.NewTTLCache(), ratelimit.New(), PanelsHandlerConfig{
		RateLimitCapacity: 1,
		RateLimitRefill:   0.0001,
	})

	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func doGet(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMarketEndpoint(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	writeBars(t, dir, "btcusd", start, []float64{100, 101, 102, 103})

	e := newTestServer(t, dir)
	rec := doGet(e, "/api/market?symbols=btcusd&start=2024-06-01T00:00:00Z&end=2024-06-01T04:00:00Z")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Status int `json:"status"`
		Data   struct {
			Rows []struct {
				Symbol string  `json:"symbol"`
				Close  float64 `json:"close"`
			} `json:"rows"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusOK {
		t.Fatalf("envelope status = %d", body.Status)
	}
	if len(body.Data.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(body.Data.Rows))
	}
	if body.Data.Rows[0].Symbol != "btcusd" || body.Data.Rows[0].Close != 100 {
		t.Fatalf("first row = %+v", body.Data.Rows[0])
	}
	if cc := rec.Header().Get(echo.HeaderCacheControl); !strings.Contains(cc, "max-age") {
		t.Fatalf("cache control = %q", cc)
	}
}

func TestMarketEndpointServesCachedResponse(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	writeBars(t, dir, "btcusd", start, []float64{100, 101, 102})

	e := newTestServer(t, dir)
	target := "/api/market?symbols=btcusd&start=2024-06-01T00:00:00Z&end=2024-06-01T03:00:00Z"

	first := doGet(e, target)
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}
	second := doGet(e, target)
	if second.Code != http.StatusOK {
		t.Fatalf("second status = %d", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("cached body differs from first build")
	}
}

func TestMarketEndpointRejectsMissingRange(t *testing.T) {
	e := newTestServer(t, t.TempDir())
	rec := doGet(e, "/api/market?symbols=btcusd")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ERR_REQUIRED") {
		t.Fatalf("body lacks validation detail: %s", rec.Body.String())
	}
}

func TestMarketEndpointUnknownSymbolIs404(t *testing.T) {
	dir := t.TempDir()
	writeBars(t, dir, "btcusd", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), []float64{100, 101})

	e := newTestServer(t, dir)
	rec := doGet(e, "/api/market?symbols=ghost&start=2024-06-01T00:00:00Z&end=2024-06-01T02:00:00Z")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %s", rec.Code, rec.Body.String())
	}
}

func TestSymbolsEndpointDiscoversUniverse(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	writeBars(t, dir, "btcusd", start, []float64{1, 2})
	writeBars(t, dir, "ethusd", start, []float64{1, 2})
	writeBars(t, dir, "spxeur", start, []float64{1, 2})

	e := newTestServer(t, dir)
	rec := doGet(e, "/api/symbols")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Data struct {
			Rows  []string `json:"rows"`
			Total int64    `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Total != 2 || len(body.Data.Rows) != 2 {
		t.Fatalf("universe = %+v, want the two usd pairs", body.Data)
	}
	for _, s := range body.Data.Rows {
		if s != "btcusd" && s != "ethusd" {
			t.Fatalf("unexpected symbol %q", s)
		}
	}
}

func TestCovarianceEndpointRateLimited(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	writeBars(t, dir, "btcusd", start, []float64{100, 110, 100, 110, 100})

	e := newTestServer(t, dir)
	target := "/api/covariance?symbols=btcusd&start=2024-06-01T00:00:00Z&end=2024-06-01T05:00:00Z&window=3"

	first := doGet(e, target)
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, body = %s", first.Code, first.Body.String())
	}
	second := doGet(e, target)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
}
