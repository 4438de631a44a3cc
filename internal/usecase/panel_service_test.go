package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"PanelPull/internal/domain/models"
	domrepo "PanelPull/internal/domain/repository"
	"PanelPull/pkg/queue"
	"PanelPull/pkg/util"
)

func newTestPanelService(t *testing.T, src domrepo.BarSource, d domrepo.FeatureDeriver, minBars, window int) *PanelService {
	t.Helper()
	pool := queue.NewPool(queue.Config{Workers: 2, QueueSize: 8})
	t.Cleanup(pool.Stop)
	return NewPanelService(PanelServiceParams{
		Loader:  NewSymbolLoader(src, d, nil, nopMetrics{}, nil, minBars, 0),
		Source:  src,
		Pool:    pool,
		Metrics: nopMetrics{},
		Window:  window,
	})
}

// twoSymbolFixture builds the hour-gap scenario: symbol a is contiguous with
// one warm-up bar before the requested start, symbol b skips one hour.
func twoSymbolFixture() (*fakeBarSource, time.Time) {
	T := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := newFakeBarSource()
	src.bars["a"] = []models.Bar{
		hourlyBar(T.Add(-time.Hour), 10, 10, 10, 10, 1),
		hourlyBar(T, 11, 11, 11, 11, 1),
		hourlyBar(T.Add(time.Hour), 12, 12, 12, 12, 1),
		hourlyBar(T.Add(2*time.Hour), 13, 13, 13, 13, 1),
	}
	src.bars["b"] = []models.Bar{
		hourlyBar(T, 100, 100, 100, 100, 5),
		hourlyBar(T.Add(2*time.Hour), 101, 102, 100, 102, 5),
	}
	return src, T
}

func TestLoadMarketDataClipsAndSorts(t *testing.T) {
	src, T := twoSymbolFixture()
	svc := newTestPanelService(t, src, noFeatures, 2, 3)

	p := PanelParams{Symbols: []string{"b", "a"}, Start: T, End: T.Add(3 * time.Hour), Interval: domrepo.IV1h}
	view, err := svc.LoadMarketData(context.Background(), p)
	if err != nil {
		t.Fatalf("market view: %v", err)
	}

	if len(view.Rows) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(view.Rows))
	}
	// warm-up bar before start must not leak into the view
	if view.Rows[0].Time.Before(T) {
		t.Fatalf("first row %v precedes start %v", view.Rows[0].Time, T)
	}
	if view.Rows[len(view.Rows)-1].Time.After(T.Add(3 * time.Hour)) {
		t.Fatalf("last row past end: %v", view.Rows[len(view.Rows)-1].Time)
	}
	// sorted by time then symbol regardless of requested order
	if view.Rows[0].Symbol != "a" || view.Rows[1].Symbol != "b" {
		t.Fatalf("rows not symbol-sorted within a timestamp: %s, %s", view.Rows[0].Symbol, view.Rows[1].Symbol)
	}

	// b's missing hour arrives gap-filled flat at the prior close
	var gap *models.MarketRow
	for i := range view.Rows {
		r := &view.Rows[i]
		if r.Symbol == "b" && r.Time.Equal(T.Add(time.Hour)) {
			gap = r
		}
	}
	if gap == nil {
		t.Fatalf("no gap-filled row for b")
	}
	if gap.Open != 100 || gap.High != 100 || gap.Low != 100 || gap.Close != 100 || gap.Volume != 0 {
		t.Fatalf("gap row not flat: %+v", gap)
	}
}

func TestLoadFeaturesExcludesPsarPair(t *testing.T) {
	src, T := twoSymbolFixture()
	deriver := funcDeriver(func(_, _, _, c, _ []float64) map[string][]float64 {
		ones := make([]float64, len(c))
		for i := range ones {
			ones[i] = 1
		}
		return map[string][]float64{
			"trend_sma_fast":  ones,
			"trend_psar_up":   ones,
			"trend_psar_down": ones,
		}
	})
	svc := newTestPanelService(t, src, deriver, 2, 3)

	p := PanelParams{Symbols: []string{"a", "b"}, Start: T, End: T.Add(3 * time.Hour), Interval: domrepo.IV1h}
	view, err := svc.LoadFeatures(context.Background(), p)
	if err != nil {
		t.Fatalf("feature view: %v", err)
	}

	want := []string{"ret", "trend_sma_fast"}
	if len(view.Columns) != len(want) || view.Columns[0] != want[0] || view.Columns[1] != want[1] {
		t.Fatalf("columns = %v, want %v", view.Columns, want)
	}
	for _, r := range view.Rows {
		if _, ok := r.Values["trend_psar_up"]; ok {
			t.Fatalf("psar column leaked into %s@%v", r.Symbol, r.Time)
		}
	}

	// a has a warm-up bar before start, so its first in-range return is
	// real; b starts at T and its undefined first return is omitted
	for _, r := range view.Rows {
		if !r.Time.Equal(T) {
			continue
		}
		ret, ok := r.Values["ret"]
		switch r.Symbol {
		case "a":
			if !ok || math.Abs(ret-0.1) > 1e-12 {
				t.Fatalf("a ret@start = %v (present %v), want 0.1", ret, ok)
			}
		case "b":
			if ok {
				t.Fatalf("b ret@start = %v, want omitted", ret)
			}
		}
	}
}

func TestLoadReturnsCashAndFill(t *testing.T) {
	src, T := twoSymbolFixture()
	svc := newTestPanelService(t, src, noFeatures, 2, 3)

	p := PanelParams{Symbols: []string{"b", "a"}, Start: T, End: T.Add(3 * time.Hour), Interval: domrepo.IV1h}
	view, err := svc.LoadReturns(context.Background(), p)
	if err != nil {
		t.Fatalf("returns view: %v", err)
	}

	if len(view.Symbols) != 3 || view.Symbols[0] != "b" || view.Symbols[1] != "a" || view.Symbols[2] != models.CashSymbol {
		t.Fatalf("symbols = %v, want [b a cash]", view.Symbols)
	}
	if len(view.Times) != 3 || !view.Times[0].Equal(T) {
		t.Fatalf("times = %v", view.Times)
	}

	for i, v := range view.Column(models.CashSymbol) {
		if v != 0 {
			t.Fatalf("cash[%d] = %v, want 0", i, v)
		}
	}

	b := view.Column("b")
	// b's first bar has an undefined return and its gap hour no observation;
	// both land as zero in the wide view
	if b[0] != 0 || b[1] != 0 {
		t.Fatalf("b = %v, want leading zeros", b)
	}
	if got, want := b[2], 0.02; math.Abs(got-want) > 1e-12 {
		t.Fatalf("b[2] = %v, want %v", got, want)
	}

	a := view.Column("a")
	for i, want := range []float64{0.1, 12.0/11.0 - 1, 13.0/12.0 - 1} {
		if math.Abs(a[i]-want) > 1e-12 {
			t.Fatalf("a[%d] = %v, want %v", i, a[i], want)
		}
	}
}

func TestEmptySymbolKeepsReturnsColumn(t *testing.T) {
	src, T := twoSymbolFixture()
	src.bars["thin"] = []models.Bar{hourlyBar(T, 1, 1, 1, 1, 1)}
	svc := newTestPanelService(t, src, noFeatures, 3, 3)

	p := PanelParams{Symbols: []string{"a", "thin"}, Start: T, End: T.Add(3 * time.Hour), Interval: domrepo.IV1h}

	market, err := svc.LoadMarketData(context.Background(), p)
	if err != nil {
		t.Fatalf("thin symbol must stay soft: %v", err)
	}
	for _, r := range market.Rows {
		if r.Symbol == "thin" {
			t.Fatalf("empty symbol contributed a market row at %v", r.Time)
		}
	}

	rets, err := svc.LoadReturns(context.Background(), p)
	if err != nil {
		t.Fatalf("returns view: %v", err)
	}
	col := rets.Column("thin")
	if col == nil {
		t.Fatalf("empty symbol lost its returns column")
	}
	for i, v := range col {
		if v != 0 {
			t.Fatalf("thin[%d] = %v, want 0", i, v)
		}
	}
}

func TestMissingSymbolAbortsBatch(t *testing.T) {
	src, T := twoSymbolFixture()
	svc := newTestPanelService(t, src, noFeatures, 2, 3)

	p := PanelParams{Symbols: []string{"a", "ghostusd"}, Start: T, End: T.Add(3 * time.Hour), Interval: domrepo.IV1h}
	if _, err := svc.LoadMarketData(context.Background(), p); !errors.Is(err, domrepo.ErrSymbolNotFound) {
		t.Fatalf("expected batch abort wrapping ErrSymbolNotFound, got %v", err)
	}
}

func TestLoadCovarianceWindow(t *testing.T) {
	T := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	src := newFakeBarSource()
	closes := []float64{100, 200, 100, 200, 100}
	bars := make([]models.Bar, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, hourlyBar(T.Add(time.Duration(i)*time.Hour), c, c, c, c, 1))
	}
	src.bars["a"] = bars

	svc := newTestPanelService(t, src, noFeatures, 2, 3)

	p := PanelParams{Symbols: []string{"a"}, Start: T, End: T.Add(5 * time.Hour), Interval: domrepo.IV1h}
	view, err := svc.LoadCovariance(context.Background(), p, 3)
	if err != nil {
		t.Fatalf("covariance view: %v", err)
	}

	// returns are [0, 1, -0.5, 1, -0.5]; the first full window of 3 ends at
	// the third timestamp
	if len(view.Times) != 3 {
		t.Fatalf("expected 3 matrices, got %d", len(view.Times))
	}
	if !view.Times[0].Equal(T.Add(2 * time.Hour)) {
		t.Fatalf("first matrix at %v, want %v", view.Times[0], T.Add(2*time.Hour))
	}

	// sample covariance of [0, 1, -0.5] is 7/12
	if got, want := view.At(0, "a", "a"), 7.0/12.0; math.Abs(got-want) > 1e-12 {
		t.Fatalf("var(a) = %v, want %v", got, want)
	}
	// next window [1, -0.5, 1] gives 0.75
	if got, want := view.At(1, "a", "a"), 0.75; math.Abs(got-want) > 1e-12 {
		t.Fatalf("second var(a) = %v, want %v", got, want)
	}

	// cash contributes exactly zero variance and covariance
	for i := range view.Times {
		if view.At(i, models.CashSymbol, models.CashSymbol) != 0 {
			t.Fatalf("var(cash) != 0 at %d", i)
		}
		if view.At(i, "a", models.CashSymbol) != 0 {
			t.Fatalf("cov(a, cash) != 0 at %d", i)
		}
	}
}

func TestLoadExtendsLookbackWindow(t *testing.T) {
	// Aug 31 minus six calendar months clamps to Feb 29 in a leap year.
	T := time.Date(2024, 8, 31, 0, 0, 0, 0, time.UTC)
	src := newFakeBarSource()
	src.bars["a"] = []models.Bar{
		hourlyBar(T, 1, 1, 1, 1, 1),
		hourlyBar(T.Add(time.Hour), 1, 2, 1, 2, 1),
	}
	svc := newTestPanelService(t, src, noFeatures, 2, 3)

	p := PanelParams{Symbols: []string{"a"}, Start: T, End: T.Add(2 * time.Hour), Interval: domrepo.IV1h}
	if _, err := svc.LoadMarketData(context.Background(), p); err != nil {
		t.Fatalf("market view: %v", err)
	}

	want := util.MonthsBefore(T, 6)
	if got := src.froms["a"]; !got.Equal(want) {
		t.Fatalf("source queried from %v, want %v", got, want)
	}
	if !want.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("clamped lookback = %v", want)
	}
}

func TestLoadRejectsBadParams(t *testing.T) {
	src, T := twoSymbolFixture()
	svc := newTestPanelService(t, src, noFeatures, 2, 3)
	ctx := context.Background()

	if _, err := svc.LoadMarketData(ctx, PanelParams{Start: T, End: T.Add(time.Hour)}); err == nil {
		t.Fatalf("expected error without symbols")
	}
	if _, err := svc.LoadMarketData(ctx, PanelParams{Symbols: []string{"a"}, Start: T.Add(time.Hour), End: T}); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	if _, err := svc.LoadMarketData(ctx, PanelParams{Symbols: []string{"a"}, Start: T, End: T.Add(time.Hour), Interval: "2h"}); err == nil {
		t.Fatalf("expected error for unsupported interval")
	}
	if _, err := svc.LoadCovariance(ctx, PanelParams{Symbols: []string{"a"}, Start: T, End: T.Add(time.Hour), Interval: domrepo.IV1h}, 1); err == nil {
		t.Fatalf("expected error for window < 2")
	}
}
