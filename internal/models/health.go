package models

// HealthDecision is the action recommended for an existing holding.
type HealthDecision string

const (
	DecisionStrongHold HealthDecision = "STRONG_HOLD"
	DecisionHold       HealthDecision = "HOLD"
	DecisionTrim25     HealthDecision = "TRIM_25"
	DecisionExit       HealthDecision = "EXIT"
)

// DecisionForScore maps a total health score to a decision. The breakpoints
// are fixed: 8-10 STRONG_HOLD, 6-7 HOLD, 4-5 TRIM_25, 0-3 EXIT. The mapping
// is contiguous and exhaustive, and monotone non-increasing in risk as the
// score rises.
func DecisionForScore(total int) HealthDecision {
	switch {
	case total >= 8:
		return DecisionStrongHold
	case total >= 6:
		return DecisionHold
	case total >= 4:
		return DecisionTrim25
	default:
		return DecisionExit
	}
}

// HoldingHealth is the health assessment for a single holding.
type HoldingHealth struct {
	Ticker           string  `json:"ticker"`
	Shares           float64 `json:"shares"`
	AvgCost          float64 `json:"avg_cost"`
	CurrentPrice     float64 `json:"current_price"`
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct"`

	// Sub-scores
	TrendScore            int `json:"trend_score"`             // 0-3
	FundamentalScore      int `json:"fundamental_score"`       // 0-3
	RelativeStrengthScore int `json:"relative_strength_score"` // 0-2
	MacroAlignmentScore   int `json:"macro_alignment_score"`   // 0-2
	TotalScore            int `json:"total_score"`             // 0-10

	Decision    HealthDecision `json:"decision"`
	Explanation string         `json:"explanation"`

	// Risk metrics
	PctFrom50MA          float64 `json:"pct_from_50ma"`
	PctFrom200MA         float64 `json:"pct_from_200ma"`
	SuggestedStop        float64 `json:"suggested_stop"`
	RiskPerShare         float64 `json:"risk_per_share"`
	PositionValue        float64 `json:"position_value"`
	RiskAsPctOfPortfolio float64 `json:"risk_as_pct_of_portfolio"`

	// Detail breakdown for the report
	TrendDetails       map[string]string `json:"trend_details,omitempty"`
	FundamentalDetails map[string]string `json:"fundamental_details,omitempty"`
	RSDetails          map[string]string `json:"rs_details,omitempty"`
	MacroDetails       map[string]string `json:"macro_details,omitempty"`
}

// HealthResult is the output of the portfolio health engine.
type HealthResult struct {
	Holdings          []HoldingHealth `json:"holdings"`
	TotalInvested     float64         `json:"total_invested"`
	TotalCurrentValue float64         `json:"total_current_value"`
	TotalPnLPct       float64         `json:"total_pnl_pct"`
	ActionsRequired   []string        `json:"actions_required"`
}
