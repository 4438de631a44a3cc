package features

import (
	"math"
	"testing"
)

var deriveColumns = []string{
	"volume_adi", "volume_obv", "volume_cmf", "volume_mfi", "volume_vwap",
	"volatility_atr", "volatility_bbm", "volatility_bbh", "volatility_bbl", "volatility_bbw",
	"trend_sma_fast", "trend_sma_slow", "trend_ema_fast", "trend_ema_slow",
	"trend_macd", "trend_macd_signal", "trend_macd_diff",
	"trend_adx", "trend_cci", "trend_psar_up", "trend_psar_down",
	"momentum_rsi", "momentum_stoch", "momentum_stoch_signal", "momentum_roc", "momentum_wr",
	"others_dr", "others_dlr", "others_cr",
}

func TestDeriveEmitsFullColumnSet(t *testing.T) {
	n := 40
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	volume := make([]float64, n)
	for i := 0; i < n; i++ {
		c := 100 + 5*math.Sin(float64(i)/3)
		open[i] = c
		high[i] = c + 1
		low[i] = c - 1
		close[i] = c
		volume[i] = float64(10 + i)
	}

	got := NewDeriver().Derive(open, high, low, close, volume)
	if len(got) != len(deriveColumns) {
		t.Fatalf("derived %d columns, want %d", len(got), len(deriveColumns))
	}
	for _, name := range deriveColumns {
		series, ok := got[name]
		if !ok {
			t.Fatalf("missing column %s", name)
		}
		if len(series) != n {
			t.Fatalf("column %s has %d values, want %d", name, len(series), n)
		}
	}
	if math.IsNaN(got["trend_sma_slow"][n-1]) {
		t.Fatalf("expected slow sma to be defined at the tail")
	}
	if math.IsNaN(got["trend_adx"][n-1]) {
		t.Fatalf("expected adx to be defined at the tail")
	}
}

func TestDeriveEmptyInput(t *testing.T) {
	got := NewDeriver().Derive(nil, nil, nil, nil, nil)
	if len(got) != 0 {
		t.Fatalf("expected no columns, got %d", len(got))
	}
}
