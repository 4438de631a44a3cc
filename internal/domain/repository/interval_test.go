package repository

import (
	"testing"
	"time"
)

func TestNormalizeInterval(t *testing.T) {
	cases := []struct {
		in   string
		want Interval
	}{
		{"", IV1h},
		{"1m", IV1m},
		{"4h", IV4h},
		{"1d", IV1d},
		{"2h", IV1h},
		{"weekly", IV1h},
	}
	for _, tc := range cases {
		if got := NormalizeInterval(tc.in); got != tc.want {
			t.Fatalf("NormalizeInterval(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIntervalDuration(t *testing.T) {
	cases := []struct {
		iv   Interval
		want time.Duration
	}{
		{IV1m, time.Minute},
		{IV5m, 5 * time.Minute},
		{IV15m, 15 * time.Minute},
		{IV1h, time.Hour},
		{IV4h, 4 * time.Hour},
		{IV1d, 24 * time.Hour},
	}
	for _, tc := range cases {
		if got := tc.iv.Duration(); got != tc.want {
			t.Fatalf("%s.Duration() = %v, want %v", tc.iv, got, tc.want)
		}
	}
}

func TestIntervalTruncate(t *testing.T) {
	// 2024-03-15 13:47:31 UTC
	ts := time.Date(2024, 3, 15, 13, 47, 31, 0, time.UTC)

	if got := IV1h.Truncate(ts); !got.Equal(time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("1h truncate = %v", got)
	}
	if got := IV4h.Truncate(ts); !got.Equal(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("4h truncate = %v", got)
	}
	if got := IV1d.Truncate(ts); !got.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("1d truncate = %v", got)
	}

	// A zoned timestamp aligns to the same UTC boundary.
	zone := time.FixedZone("plus2", 2*60*60)
	zoned := time.Date(2024, 3, 15, 15, 47, 31, 0, zone)
	if got := IV1h.Truncate(zoned); !got.Equal(IV1h.Truncate(ts)) {
		t.Fatalf("zoned truncate = %v, want %v", got, IV1h.Truncate(ts))
	}
}

func TestIsValidInterval(t *testing.T) {
	for _, iv := range []Interval{IV1m, IV5m, IV15m, IV1h, IV4h, IV1d} {
		if !IsValidInterval(iv) {
			t.Fatalf("%s should be valid", iv)
		}
	}
	if IsValidInterval("30s") || IsValidInterval("") {
		t.Fatalf("unsupported intervals must be rejected")
	}
}
