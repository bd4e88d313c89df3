package risk

type Policy struct {
	DefaultRiskPct float64 `json:"default_risk_pct" yaml:"default_risk_pct"` // 0.01
	MaxRiskPct     float64 `json:"max_risk_pct" yaml:"max_risk_pct"`         // 0.02

	// Loss of the active trading day, as a fraction of equity.
	MaxDailyLossPct float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"`

	MaxOpenPositions int     `json:"max_open_positions" yaml:"max_open_positions"`
	MaxMarginPct     float64 `json:"max_margin_pct" yaml:"max_margin_pct"`

	MinRR float64 `json:"min_rr" yaml:"min_rr"`
}

func DefaultPolicy() Policy {
	return Policy{
		DefaultRiskPct:   0.01,
		MaxRiskPct:       0.02,
		MaxDailyLossPct:  0.03,
		MaxOpenPositions: 5,
		MaxMarginPct:     0.5,
		MinRR:            1.5,
	}
}

type Intent struct {
	Instrument   string
	ContractSize float64
	Lots         float64
	Entry        float64
	StopLoss     *float64
	TakeProfit   *float64
}

type AccountSnapshot struct {
	Equity        float64
	MarginUsed    float64
	OpenPositions int
	DayRealized   float64
}
