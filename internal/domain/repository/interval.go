package repository

import "time"

// Interval represents a resample bucket width.
type Interval string

const (
	IV1m  Interval = "1m"
	IV5m  Interval = "5m"
	IV15m Interval = "15m"
	IV1h  Interval = "1h"
	IV4h  Interval = "4h"
	IV1d  Interval = "1d"
)

// IsValidInterval returns true if iv is a supported interval.
func IsValidInterval(iv Interval) bool {
	switch iv {
	case IV1m, IV5m, IV15m, IV1h, IV4h, IV1d:
		return true
	default:
		return false
	}
}

// DefaultInterval returns the default interval.
func DefaultInterval() Interval { return IV1h }

// NormalizeInterval converts raw string to a valid interval (or default).
func NormalizeInterval(s string) Interval {
	if s == "" {
		return DefaultInterval()
	}
	iv := Interval(s)
	if IsValidInterval(iv) {
		return iv
	}
	return DefaultInterval()
}

// Duration returns the bucket width of the interval.
func (iv Interval) Duration() time.Duration {
	switch iv {
	case IV1m:
		return time.Minute
	case IV5m:
		return 5 * time.Minute
	case IV15m:
		return 15 * time.Minute
	case IV4h:
		return 4 * time.Hour
	case IV1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// Truncate aligns t down to the interval bucket boundary in UTC.
func (iv Interval) Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(iv.Duration())
}
