package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"PanelPull/internal/domain/models"
	domrepo "PanelPull/internal/domain/repository"
	applogger "PanelPull/pkg/logger"
	"PanelPull/pkg/queue"
	"PanelPull/pkg/util"
)

// droppedFeatureColumns are excluded from the feature view unconditionally:
// the stop-and-reverse pair flips between mostly-NaN halves and is not a
// usable model input.
var droppedFeatureColumns = map[string]struct{}{
	"trend_psar_up":   {},
	"trend_psar_down": {},
}

// PanelParams is the shared symbol-universe and date-range selector for all
// four views.
type PanelParams struct {
	Symbols  []string
	Start    time.Time
	End      time.Time
	Interval domrepo.Interval
}

func (p *PanelParams) normalize() error {
	p.Symbols = dedupe(p.Symbols)
	if len(p.Symbols) == 0 {
		return fmt.Errorf("symbols required")
	}
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("start and end required")
	}
	if p.Start.After(p.End) {
		return fmt.Errorf("start must be <= end")
	}
	if p.Interval == "" {
		p.Interval = domrepo.DefaultInterval()
	}
	if !domrepo.IsValidInterval(p.Interval) {
		return fmt.Errorf("unsupported interval: %s", p.Interval)
	}
	return nil
}

// PanelServiceParams bundles the panel service dependencies.
type PanelServiceParams struct {
	Loader   *SymbolLoader
	Source   domrepo.BarSource
	Pool     *queue.Pool
	Events   domrepo.EventPublisher
	Metrics  domrepo.Metrics
	Logger   *applogger.Logger
	Lookback int    // calendar months of warm-up history before start
	Window   int    // default covariance window in bars
	Pattern  string // default universe glob for Symbols
	Progress bool   // draw a console progress bar during fan-out
}

// PanelService assembles cross-symbol views from per-symbol panels. Every
// view extends the requested range back by the configured number of calendar
// months so indicator and covariance windows are warm, then clips the output
// to [start, end].
type PanelService struct {
	loader   *SymbolLoader
	source   domrepo.BarSource
	pool     *queue.Pool
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	l        *applogger.Logger
	lookback int
	window   int
	pattern  string
	progress bool
}

// NewPanelService creates a new PanelService instance.
func NewPanelService(p PanelServiceParams) *PanelService {
	if p.Lookback <= 0 {
		p.Lookback = 6
	}
	if p.Window < 2 {
		p.Window = 180
	}
	if p.Pattern == "" {
		p.Pattern = "*usd"
	}
	return &PanelService{
		loader:   p.Loader,
		source:   p.Source,
		pool:     p.Pool,
		events:   p.Events,
		metrics:  p.Metrics,
		l:        p.Logger,
		lookback: p.Lookback,
		window:   p.Window,
		pattern:  p.Pattern,
		progress: p.Progress,
	}
}

// SetProgress toggles the console progress bar drawn during fan-out.
func (s *PanelService) SetProgress(on bool) { s.progress = on }

// Symbols lists the available universe matching pattern (default glob from
// configuration when empty).
func (s *PanelService) Symbols(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = s.pattern
	}
	return s.source.Symbols(ctx, pattern)
}

// LoadMarketData builds the (time, symbol) OHLCV view.
func (s *PanelService) LoadMarketData(ctx context.Context, p PanelParams) (*models.MarketDataPanel, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	began := time.Now()
	panels, err := s.fanOut(ctx, p.Symbols, util.MonthsBefore(p.Start, s.lookback), p.End, p.Interval)
	if err != nil {
		return nil, err
	}
	view := buildMarketView(p.Symbols, panels, p.Start, p.End)
	s.finish(ctx, "market", p, len(view.Rows), began)
	return view, nil
}

// LoadFeatures builds the (time, symbol) derived-feature view. Raw OHLCV
// columns are excluded; the per-bar return is kept as the ret column.
func (s *PanelService) LoadFeatures(ctx context.Context, p PanelParams) (*models.FeaturePanel, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	began := time.Now()
	panels, err := s.fanOut(ctx, p.Symbols, util.MonthsBefore(p.Start, s.lookback), p.End, p.Interval)
	if err != nil {
		return nil, err
	}
	view := buildFeatureView(p.Symbols, panels, p.Start, p.End)
	s.finish(ctx, "features", p, len(view.Rows), began)
	return view, nil
}

// LoadReturns builds the wide time by symbol returns view with the synthetic
// cash column appended.
func (s *PanelService) LoadReturns(ctx context.Context, p PanelParams) (*models.ReturnsPanel, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	began := time.Now()
	panels, err := s.fanOut(ctx, p.Symbols, util.MonthsBefore(p.Start, s.lookback), p.End, p.Interval)
	if err != nil {
		return nil, err
	}
	view := wideReturns(p.Symbols, panels, p.Start, p.End)
	s.finish(ctx, "returns", p, len(view.Times), began)
	return view, nil
}

// LoadCovariance builds the rolling covariance view. The trailing window is
// computed over the lookback-extended returns so the first requested
// timestamps already have a fully populated window behind them.
func (s *PanelService) LoadCovariance(ctx context.Context, p PanelParams, window int) (*models.CovariancePanel, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	if window <= 0 {
		window = s.window
	}
	if window < 2 {
		return nil, fmt.Errorf("window must be >= 2")
	}
	began := time.Now()
	extStart := util.MonthsBefore(p.Start, s.lookback)
	panels, err := s.fanOut(ctx, p.Symbols, extStart, p.End, p.Interval)
	if err != nil {
		return nil, err
	}
	wide := wideReturns(p.Symbols, panels, extStart, p.End)
	view := clipCovariance(rollingCovariance(wide, window), p.Start, p.End)
	s.finish(ctx, "covariance", p, len(view.Times), began)
	return view, nil
}

// fanOut loads every symbol's panel concurrently over the extended range.
// The first hard per-symbol failure aborts the batch.
func (s *PanelService) fanOut(ctx context.Context, symbols []string, extStart, end time.Time, interval domrepo.Interval) (map[string]*models.SymbolPanel, error) {
	var bar *pb.ProgressBar
	if s.progress {
		bar = pb.StartNew(len(symbols))
	}
	results := queue.Collect(ctx, s.pool, symbols, func(ctx context.Context, sym string) (*models.SymbolPanel, error) {
		p, err := s.loader.Load(ctx, sym, extStart, end, interval)
		if bar != nil {
			bar.Increment()
		}
		return p, err
	})
	if bar != nil {
		bar.Finish()
	}

	panels := make(map[string]*models.SymbolPanel, len(results))
	for sym, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("symbol %s: %w", sym, r.Err)
		}
		panels[sym] = r.Value
	}
	return panels, nil
}

func (s *PanelService) finish(ctx context.Context, view string, p PanelParams, rows int, began time.Time) {
	dur := time.Since(began)
	s.metrics.RecordPanelBuilt(view)
	s.metrics.RecordPanelRows(view, rows)
	s.metrics.RecordDuration("build_"+view, dur.Seconds())

	runID := uuid.NewString()
	if s.l != nil {
		s.l.Info("panel built",
			applogger.String("run_id", runID),
			applogger.String("view", view),
			applogger.Int("symbols", len(p.Symbols)),
			applogger.String("interval", string(p.Interval)),
			applogger.Int("rows", rows),
			applogger.Duration("duration_ms", dur),
		)
	}
	if s.events != nil {
		ev := &models.BuildEvent{
			RunID:      runID,
			View:       view,
			Symbols:    p.Symbols,
			Start:      p.Start,
			End:        p.End,
			Interval:   string(p.Interval),
			Rows:       rows,
			DurationMS: dur.Milliseconds(),
		}
		if err := s.events.PublishBuild(ctx, ev); err != nil && s.l != nil {
			s.l.Warn("build event publish failed",
				applogger.String("view", view),
				applogger.Error(err),
			)
		}
	}
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// buildMarketView concatenates the OHLCV columns of all non-empty panels,
// clipped to [start, end], sorted by time then symbol.
func buildMarketView(symbols []string, panels map[string]*models.SymbolPanel, start, end time.Time) *models.MarketDataPanel {
	out := &models.MarketDataPanel{}
	for _, sym := range symbols {
		p := panels[sym]
		if p == nil || p.Empty() {
			continue
		}
		for i, t := range p.Times {
			if t.Before(start) || t.After(end) {
				continue
			}
			out.Rows = append(out.Rows, models.MarketRow{
				Time:   t,
				Symbol: sym,
				Open:   p.Open[i],
				High:   p.High[i],
				Low:    p.Low[i],
				Close:  p.Close[i],
				Volume: p.Volume[i],
			})
		}
	}
	sort.Slice(out.Rows, func(i, j int) bool {
		if !out.Rows[i].Time.Equal(out.Rows[j].Time) {
			return out.Rows[i].Time.Before(out.Rows[j].Time)
		}
		return out.Rows[i].Symbol < out.Rows[j].Symbol
	})
	return out
}

// buildFeatureView concatenates derived feature columns plus ret, excluding
// the dropped indicator pair, clipped to [start, end], sorted by time then
// symbol. Symbols with no surviving rows contribute nothing.
func buildFeatureView(symbols []string, panels map[string]*models.SymbolPanel, start, end time.Time) *models.FeaturePanel {
	colSet := make(map[string]struct{})
	out := &models.FeaturePanel{}
	for _, sym := range symbols {
		p := panels[sym]
		if p == nil || p.Empty() {
			continue
		}
		names := make([]string, 0, len(p.FeatureNames))
		for _, name := range p.FeatureNames {
			if _, drop := droppedFeatureColumns[name]; drop {
				continue
			}
			names = append(names, name)
			colSet[name] = struct{}{}
		}
		colSet["ret"] = struct{}{}
		for i, t := range p.Times {
			if t.Before(start) || t.After(end) {
				continue
			}
			vals := make(map[string]float64, len(names)+1)
			for _, name := range names {
				if v := p.Features[name][i]; !math.IsNaN(v) {
					vals[name] = v
				}
			}
			if v := p.Return[i]; !math.IsNaN(v) {
				vals["ret"] = v
			}
			out.Rows = append(out.Rows, models.FeatureRow{Time: t, Symbol: sym, Values: vals})
		}
	}
	sort.Slice(out.Rows, func(i, j int) bool {
		if !out.Rows[i].Time.Equal(out.Rows[j].Time) {
			return out.Rows[i].Time.Before(out.Rows[j].Time)
		}
		return out.Rows[i].Symbol < out.Rows[j].Symbol
	})
	cols := make([]string, 0, len(colSet))
	for c := range colSet {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	out.Columns = cols
	return out
}

// wideReturns pivots per-symbol returns into a time by symbol matrix over
// [lo, hi]. Cells with no observation, and the undefined first-bar return,
// are zero. Every requested symbol keeps its column even when empty, and the
// synthetic cash column is appended last.
func wideReturns(symbols []string, panels map[string]*models.SymbolPanel, lo, hi time.Time) *models.ReturnsPanel {
	timeSet := make(map[int64]time.Time)
	index := make(map[string]map[int64]int, len(symbols))
	for _, sym := range symbols {
		p := panels[sym]
		if p == nil {
			continue
		}
		m := make(map[int64]int, len(p.Times))
		for i, t := range p.Times {
			m[t.UnixMilli()] = i
			if t.Before(lo) || t.After(hi) {
				continue
			}
			timeSet[t.UnixMilli()] = t
		}
		index[sym] = m
	}

	times := make([]time.Time, 0, len(timeSet))
	for _, t := range timeSet {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	cols := make([]string, 0, len(symbols)+1)
	cols = append(cols, symbols...)
	cols = append(cols, models.CashSymbol)

	values := make([][]float64, len(times))
	for ri, t := range times {
		row := make([]float64, len(cols))
		ms := t.UnixMilli()
		for ci, sym := range symbols {
			p := panels[sym]
			if p == nil {
				continue
			}
			if i, ok := index[sym][ms]; ok {
				if v := p.Return[i]; !math.IsNaN(v) {
					row[ci] = v
				}
			}
		}
		// cash column stays zero
		values[ri] = row
	}
	return &models.ReturnsPanel{Times: times, Symbols: cols, Values: values}
}

// rollingCovariance computes the sample covariance matrix of the trailing
// window rows at each timestamp, emitting nothing until the window is fully
// populated.
func rollingCovariance(r *models.ReturnsPanel, window int) *models.CovariancePanel {
	n := len(r.Times)
	k := len(r.Symbols)
	out := &models.CovariancePanel{Symbols: r.Symbols, Window: window}
	if window < 2 || n < window {
		return out
	}

	// column-major copy so each trailing window is a contiguous slice
	cols := make([][]float64, k)
	for c := 0; c < k; c++ {
		col := make([]float64, n)
		for ri := 0; ri < n; ri++ {
			col[ri] = r.Values[ri][c]
		}
		cols[c] = col
	}

	for ri := window - 1; ri < n; ri++ {
		lo := ri - window + 1
		m := mat.NewSymDense(k, nil)
		for a := 0; a < k; a++ {
			xa := cols[a][lo : ri+1]
			for b := a; b < k; b++ {
				m.SetSym(a, b, stat.Covariance(xa, cols[b][lo:ri+1], nil))
			}
		}
		out.Times = append(out.Times, r.Times[ri])
		out.Matrices = append(out.Matrices, m)
	}
	return out
}

// clipCovariance keeps only emitted timestamps within [start, end].
func clipCovariance(cp *models.CovariancePanel, start, end time.Time) *models.CovariancePanel {
	out := &models.CovariancePanel{Symbols: cp.Symbols, Window: cp.Window}
	for i, t := range cp.Times {
		if t.Before(start) || t.After(end) {
			continue
		}
		out.Times = append(out.Times, t)
		out.Matrices = append(out.Matrices, cp.Matrices[i])
	}
	return out
}
