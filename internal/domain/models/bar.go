package models

import "time"

// Bar is one OHLCV record for a fixed time bucket. Immutable once read.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// SymbolPanel is one symbol's resampled series with derived columns.
// Times is strictly regular at the configured interval within the covered
// range. NaN is the null value for numeric cells; Return is NaN at the
// first row. Feature series are aligned to Times; a feature column that
// was entirely undefined for this symbol is absent from Features.
type SymbolPanel struct {
	Symbol       string
	Times        []time.Time
	Open         []float64
	High         []float64
	Low          []float64
	Close        []float64
	Volume       []float64
	Return       []float64
	FeatureNames []string // sorted
	Features     map[string][]float64
}

// Len returns the number of rows.
func (p *SymbolPanel) Len() int { return len(p.Times) }

// Empty reports whether the panel has no rows.
func (p *SymbolPanel) Empty() bool { return len(p.Times) == 0 }
