package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"PanelPull/internal/domain/models"
	domrepo "PanelPull/internal/domain/repository"
	pkgcache "PanelPull/pkg/cache"
	applogger "PanelPull/pkg/logger"
)

const (
	warmLockTTL  = 30 * time.Second
	warmWaitStep = 200 * time.Millisecond
	warmWaitMax  = 5
)

// SymbolLoader turns raw bars for one symbol into a regular panel with a
// return column and derived features, memoized by (symbol, range, interval).
type SymbolLoader struct {
	source  domrepo.BarSource
	deriver domrepo.FeatureDeriver
	cache   pkgcache.Service
	metrics domrepo.Metrics
	l       *applogger.Logger
	minBars int
	ttl     time.Duration
}

// NewSymbolLoader creates a new SymbolLoader instance.
func NewSymbolLoader(
	source domrepo.BarSource,
	deriver domrepo.FeatureDeriver,
	cache pkgcache.Service,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	minBars int,
	ttl time.Duration,
) *SymbolLoader {
	if minBars <= 0 {
		minBars = 30
	}
	return &SymbolLoader{
		source:  source,
		deriver: deriver,
		cache:   cache,
		metrics: metrics,
		l:       l,
		minBars: minBars,
		ttl:     ttl,
	}
}

// Load returns the panel for symbol over [start, end) at the given interval.
// A backed symbol with empty or too-thin data yields an empty panel and a
// warning rather than an error, so one thin symbol cannot fail a whole batch.
func (l *SymbolLoader) Load(ctx context.Context, symbol string, start, end time.Time, interval domrepo.Interval) (*models.SymbolPanel, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if start.After(end) {
		return nil, fmt.Errorf("start must be <= end")
	}

	key := panelKey(symbol, start, end, interval)
	if p, err := l.lookup(ctx, key); err == nil {
		l.metrics.RecordCacheRequest("hit")
		return p, nil
	} else if !errors.Is(err, pkgcache.ErrCacheMiss) && l.l != nil {
		l.l.Warn("panel cache get failed",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
	}
	l.metrics.RecordCacheRequest("miss")

	if l.cache != nil {
		locked, err := l.cache.TryLock(ctx, key, warmLockTTL)
		if err == nil && locked {
			defer func() { _ = l.cache.Unlock(ctx, key) }()
		} else if err == nil {
			// another worker is already building this panel; wait briefly
			// for its result before duplicating the work
			for i := 0; i < warmWaitMax; i++ {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(warmWaitStep):
				}
				if p, err := l.lookup(ctx, key); err == nil {
					l.metrics.RecordCacheRequest("hit")
					return p, nil
				}
			}
		}
	}

	panel, err := l.build(ctx, symbol, start, end, interval)
	if err != nil {
		l.metrics.RecordSymbolLoaded("error")
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, panel, l.ttl); err != nil && l.l != nil {
			l.l.Warn("panel cache set failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
	}
	return panel, nil
}

func (l *SymbolLoader) lookup(ctx context.Context, key string) (*models.SymbolPanel, error) {
	if l.cache == nil {
		return nil, pkgcache.ErrCacheMiss
	}
	var p models.SymbolPanel
	if err := l.cache.Get(ctx, key, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (l *SymbolLoader) build(ctx context.Context, symbol string, start, end time.Time, interval domrepo.Interval) (*models.SymbolPanel, error) {
	began := time.Now()
	defer func() {
		l.metrics.RecordDuration("load_symbol", time.Since(began).Seconds())
	}()

	// A symbol with no backing data at all is a universe configuration
	// problem and propagates; a backed symbol with no bars in range is a
	// data-quality condition handled below.
	bars, err := l.source.Bars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("load bars %s: %w", symbol, err)
	}

	s := resampleBars(bars, interval)
	if len(s.times) < l.minBars {
		if l.l != nil {
			l.l.Warn("insufficient data for symbol",
				applogger.String("symbol", symbol),
				applogger.Int("rows", len(s.times)),
				applogger.Int("min_rows", l.minBars),
			)
		}
		l.metrics.RecordSymbolLoaded("insufficient")
		return &models.SymbolPanel{Symbol: symbol}, nil
	}

	ret := make([]float64, len(s.close))
	ret[0] = math.NaN()
	for i := 1; i < len(s.close); i++ {
		ret[i] = s.close[i]/s.close[i-1] - 1
	}

	names, cols := cleanFeatures(l.deriver.Derive(s.open, s.high, s.low, s.close, s.volume))

	l.metrics.RecordSymbolLoaded("ok")
	return &models.SymbolPanel{
		Symbol:       symbol,
		Times:        s.times,
		Open:         s.open,
		High:         s.high,
		Low:          s.low,
		Close:        s.close,
		Volume:       s.volume,
		Return:       ret,
		FeatureNames: names,
		Features:     cols,
	}, nil
}

func panelKey(symbol string, start, end time.Time, interval domrepo.Interval) string {
	return pkgcache.GenerateKeyWithParams("panel", symbol, start.UnixMilli(), end.UnixMilli(), string(interval))
}

type series struct {
	times  []time.Time
	open   []float64
	high   []float64
	low    []float64
	close  []float64
	volume []float64
}

// resampleBars aggregates ascending raw bars into interval buckets: first
// open, max high, min low, last close, summed volume. Buckets between the
// first and last observed bar with no data become a flat bar at the previous
// close with zero volume, so the output index is strictly regular.
func resampleBars(bars []models.Bar, interval domrepo.Interval) series {
	var s series
	if len(bars) == 0 {
		return s
	}

	type agg struct {
		t             time.Time
		o, h, l, c, v float64
	}
	aggs := make([]agg, 0, len(bars))
	for _, b := range bars {
		bt := interval.Truncate(b.Time)
		if n := len(aggs); n > 0 && aggs[n-1].t.Equal(bt) {
			a := &aggs[n-1]
			if b.High > a.h {
				a.h = b.High
			}
			if b.Low < a.l {
				a.l = b.Low
			}
			a.c = b.Close
			a.v += b.Volume
		} else {
			aggs = append(aggs, agg{t: bt, o: b.Open, h: b.High, l: b.Low, c: b.Close, v: b.Volume})
		}
	}

	step := interval.Duration()
	first, last := aggs[0].t, aggs[len(aggs)-1].t
	n := int(last.Sub(first)/step) + 1
	s.times = make([]time.Time, 0, n)
	s.open = make([]float64, 0, n)
	s.high = make([]float64, 0, n)
	s.low = make([]float64, 0, n)
	s.close = make([]float64, 0, n)
	s.volume = make([]float64, 0, n)

	i := 0
	for t := first; !t.After(last); t = t.Add(step) {
		if i < len(aggs) && aggs[i].t.Equal(t) {
			a := aggs[i]
			i++
			s.times = append(s.times, t)
			s.open = append(s.open, a.o)
			s.high = append(s.high, a.h)
			s.low = append(s.low, a.l)
			s.close = append(s.close, a.c)
			s.volume = append(s.volume, a.v)
			continue
		}
		prev := s.close[len(s.close)-1]
		s.times = append(s.times, t)
		s.open = append(s.open, prev)
		s.high = append(s.high, prev)
		s.low = append(s.low, prev)
		s.close = append(s.close, prev)
		s.volume = append(s.volume, 0)
	}
	return s
}

// cleanFeatures replaces infinities with NaN, drops columns that are entirely
// NaN, and forward-fills interior NaNs. Leading NaNs have no fill source and
// stay NaN. Column names come back sorted for a deterministic order.
func cleanFeatures(raw map[string][]float64) ([]string, map[string][]float64) {
	cols := make(map[string][]float64, len(raw))
	names := make([]string, 0, len(raw))
	for name, vals := range raw {
		allNaN := true
		for i, v := range vals {
			if math.IsInf(v, 0) {
				vals[i] = math.NaN()
			}
			if !math.IsNaN(vals[i]) {
				allNaN = false
			}
		}
		if allNaN {
			continue
		}
		last := math.NaN()
		for i, v := range vals {
			if math.IsNaN(v) {
				if !math.IsNaN(last) {
					vals[i] = last
				}
			} else {
				last = v
			}
		}
		cols[name] = vals
		names = append(names, name)
	}
	sort.Strings(names)
	return names, cols
}
