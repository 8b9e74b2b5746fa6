package models

import "time"

// Candidate is a screened ticker that passed all hard filters, with its
// composite score and trade plan.
type Candidate struct {
	Ticker         string  `json:"ticker"`
	Sector         string  `json:"sector"`
	CurrentPrice   float64 `json:"current_price"`
	CompositeScore float64 `json:"composite_score"` // 0-100

	// Sub-scores (0-100 each, before weighting)
	TrendStrength     float64 `json:"trend_strength"`
	FundamentalGrowth float64 `json:"fundamental_growth"`
	RelStrength       float64 `json:"rel_strength"`
	VolumeExpansion   float64 `json:"volume_expansion"`
	ValuationVsGrowth float64 `json:"valuation_vs_growth"`

	// Trade plan
	EntryZoneLow       float64 `json:"entry_zone_low"`
	EntryZoneHigh      float64 `json:"entry_zone_high"`
	SuggestedStop      float64 `json:"suggested_stop"`
	RiskPerShare       float64 `json:"risk_per_share"`
	PositionSizeShares int     `json:"position_size_shares"`
	CapitalRequired    float64 `json:"capital_required"`

	// Scenario analysis (6-week, illustrative probabilities, not modeled)
	BullScenario    string `json:"bull_scenario"`
	BaseScenario    string `json:"base_scenario"`
	BearScenario    string `json:"bear_scenario"`
	SixMonthOutlook string `json:"six_month_outlook"`

	// Metadata
	RSI            float64    `json:"rsi"`
	PctFrom50MA    float64    `json:"pct_from_50ma"`
	PctFrom200MA   float64    `json:"pct_from_200ma"`
	AvgVolumeRatio float64    `json:"avg_volume_ratio"`
	EarningsGrowth *float64   `json:"earnings_growth,omitempty"`
	RevenueGrowth  *float64   `json:"revenue_growth,omitempty"`
	NextEarnings   *time.Time `json:"next_earnings,omitempty"`
}

// ScreenResult is the output of the opportunity screener.
type ScreenResult struct {
	Candidates       []Candidate `json:"candidates"`
	UniverseScanned  int         `json:"universe_scanned"`
	PassedFilter     int         `json:"passed_filter"`
	Regime           RegimeClass `json:"regime"`
	RegimeMultiplier float64     `json:"regime_multiplier"`
}
