package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"PanelPull/internal/domain/models"
	domrepo "PanelPull/internal/domain/repository"
	applogger "PanelPull/pkg/logger"
)

// CSVBarSource implements BarSource over a directory of per-symbol files.
// Each file is named <symbol>.csv with columns time (epoch milliseconds),
// open, close, high, low, volume. A leading header row is tolerated.
type CSVBarSource struct {
	dir string
	l   *applogger.Logger
}

// NewCSVBarSource creates a bar source reading from dir.
func NewCSVBarSource(dir string) *CSVBarSource {
	return &CSVBarSource{dir: dir}
}

// SetLogger injects a structured logger.
func (s *CSVBarSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CSVBarSource) Bars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	start := time.Now()
	p := filepath.Join(s.dir, symbol+".csv")
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("csv bars %s: %w", symbol, domrepo.ErrSymbolNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6
	r.ReuseRecord = true

	out := make([]models.Bar, 0, 1024)
	sorted := true
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		line++
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		ms, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			if line == 1 {
				// header row
				continue
			}
			return nil, fmt.Errorf("%s line %d: bad timestamp %q", p, line, rec[0])
		}
		var vals [5]float64
		for i := 1; i < 6; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad value %q", p, line, rec[i])
			}
			vals[i-1] = v
		}

		t := time.UnixMilli(ms).UTC()
		if t.Before(from) || !t.Before(to) {
			continue
		}
		if n := len(out); n > 0 && t.Before(out[n-1].Time) {
			sorted = false
		}
		out = append(out, models.Bar{
			Time:   t,
			Open:   vals[0],
			Close:  vals[1],
			High:   vals[2],
			Low:    vals[3],
			Volume: vals[4],
		})
	}
	if !sorted {
		sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	}

	if s.l != nil {
		s.l.Info("csv bars ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CSVBarSource) Symbols(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, pattern+".csv"))
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSuffix(filepath.Base(m), ".csv"))
	}
	sort.Strings(out)
	return out, nil
}

func (s *CSVBarSource) Health(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", s.dir)
	}
	return nil
}

func (s *CSVBarSource) Close() error {
	return nil
}
