package models

// Requests for panel HTTP endpoints. Defined in domain for consistency and reuse.

type PanelRequest struct {
	Symbols  string `query:"symbols" json:"symbols"`
	Start    string `query:"start" json:"start" validate:"required"`
	End      string `query:"end" json:"end" validate:"required"`
	Interval string `query:"interval" json:"interval" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
}

type CovarianceRequest struct {
	Symbols  string `query:"symbols" json:"symbols"`
	Start    string `query:"start" json:"start" validate:"required"`
	End      string `query:"end" json:"end" validate:"required"`
	Window   int    `query:"window" json:"window" default:"180" validate:"gte=2,lte=5000"`
	Interval string `query:"interval" json:"interval" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
}

type SymbolsRequest struct {
	Pattern string `query:"pattern" json:"pattern" default:"*usd"`
}
