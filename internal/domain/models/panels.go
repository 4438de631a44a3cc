package models

import (
	"encoding/json"
	"time"

	"gonum.org/v1/gonum/mat"
)

// CashSymbol is the synthetic zero-return instrument appended to the
// returns and covariance views.
const CashSymbol = "cash"

// MarketRow is one (time, symbol) OHLCV observation.
type MarketRow struct {
	Time   time.Time `json:"time"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// MarketDataPanel maps (time, symbol) to OHLCV. Rows are sorted by time,
// then symbol; keys are unique; the panel covers only the requested range.
type MarketDataPanel struct {
	Rows []MarketRow `json:"rows"`
}

// FeatureRow is one (time, symbol) feature vector. A column absent for
// this symbol (or undefined at this row) is absent from Values, not zero.
type FeatureRow struct {
	Time   time.Time          `json:"time"`
	Symbol string             `json:"symbol"`
	Values map[string]float64 `json:"values"`
}

// FeaturePanel maps (time, symbol) to derived feature values. Columns is
// the sorted union of feature names across symbols; individual symbols may
// carry a subset.
type FeaturePanel struct {
	Columns []string     `json:"columns"`
	Rows    []FeatureRow `json:"rows"`
}

// ReturnsPanel is the wide time by symbol matrix of per-bar returns.
// Symbols always ends with CashSymbol; missing cells are zero-filled, the
// cash column is identically zero.
type ReturnsPanel struct {
	Times   []time.Time `json:"times"`
	Symbols []string    `json:"symbols"`
	Values  [][]float64 `json:"values"` // row-major, len(Times) x len(Symbols)
}

// Column returns the series for one symbol, or nil if absent.
func (p *ReturnsPanel) Column(symbol string) []float64 {
	for j, s := range p.Symbols {
		if s != symbol {
			continue
		}
		col := make([]float64, len(p.Times))
		for i := range p.Values {
			col[i] = p.Values[i][j]
		}
		return col
	}
	return nil
}

// CovariancePanel holds, per emitted timestamp, the sample covariance
// matrix of the trailing Window returns rows across Symbols. The symbol
// order matches ReturnsPanel. No matrix exists for timestamps whose
// trailing window was not fully populated.
type CovariancePanel struct {
	Times    []time.Time
	Symbols  []string
	Window   int
	Matrices []*mat.SymDense
}

// At returns the covariance between two symbols at the i-th emitted
// timestamp, or 0 if either symbol is unknown.
func (p *CovariancePanel) At(i int, a, b string) float64 {
	ai, bi := -1, -1
	for j, s := range p.Symbols {
		if s == a {
			ai = j
		}
		if s == b {
			bi = j
		}
	}
	if ai < 0 || bi < 0 {
		return 0
	}
	return p.Matrices[i].At(ai, bi)
}

// MarshalJSON renders each matrix as a dense row-major [][]float64, since
// the gonum type has no exported fields.
func (p *CovariancePanel) MarshalJSON() ([]byte, error) {
	n := len(p.Symbols)
	matrices := make([][][]float64, len(p.Matrices))
	for i, m := range p.Matrices {
		rows := make([][]float64, n)
		for r := 0; r < n; r++ {
			row := make([]float64, n)
			for c := 0; c < n; c++ {
				row[c] = m.At(r, c)
			}
			rows[r] = row
		}
		matrices[i] = rows
	}
	return json.Marshal(struct {
		Times    []time.Time   `json:"times"`
		Symbols  []string      `json:"symbols"`
		Window   int           `json:"window"`
		Matrices [][][]float64 `json:"matrices"`
	}{Times: p.Times, Symbols: p.Symbols, Window: p.Window, Matrices: matrices})
}
