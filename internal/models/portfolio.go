package models

// Holding is a single equity position in the portfolio.
type Holding struct {
	Ticker  string  `json:"ticker"`
	Shares  float64 `json:"shares"`
	AvgCost float64 `json:"avg_cost"`
}

// ExternalHolding is a non-equity asset tracked as notes only.
// It appears in the report but receives no analytics.
type ExternalHolding struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	AvgCost  float64 `json:"avg_cost"`
	Notes    string  `json:"notes,omitempty"`
}
