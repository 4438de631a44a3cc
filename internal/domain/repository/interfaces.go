package repository

import (
	"context"
	"errors"
	"time"

	"PanelPull/internal/domain/models"
)

// ErrSymbolNotFound marks a requested symbol with no backing data.
// A load wrapping it is a configuration error and aborts the whole batch.
var ErrSymbolNotFound = errors.New("repository: symbol not found")

// BarSource provides read-only access to raw bars, one symbol at a time.
type BarSource interface {
	// Bars returns raw bars for symbol with timestamp in [from, to), ascending.
	// A symbol without backing data returns an error wrapping ErrSymbolNotFound;
	// a backed symbol with no rows in range returns an empty slice.
	Bars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)

	// Symbols lists symbols whose backing data matches the glob pattern.
	Symbols(ctx context.Context, pattern string) ([]string, error)

	Health(ctx context.Context) error
	Close() error
}

// FeatureDeriver computes an indicator suite from resampled OHLCV series.
// Implementations return one series per feature name, each aligned to the
// input length, with NaN where a value is undefined.
type FeatureDeriver interface {
	Derive(open, high, low, close, volume []float64) map[string][]float64
}

// EventPublisher emits panel build events to the event stream.
type EventPublisher interface {
	PublishBuild(ctx context.Context, ev *models.BuildEvent) error
	Close() error
}

// Metrics records pipeline counters and timings.
type Metrics interface {
	RecordSymbolLoaded(status string)
	RecordCacheRequest(result string)
	RecordPanelBuilt(view string)
	RecordPanelRows(view string, rows int)
	RecordDuration(op string, seconds float64)
}
