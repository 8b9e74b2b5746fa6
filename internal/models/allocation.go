package models

// PlanAction identifies the type of an allocation plan row.
type PlanAction string

const (
	ActionBuy  PlanAction = "BUY"
	ActionTrim PlanAction = "TRIM"
	ActionExit PlanAction = "EXIT"
)

// AllocationPlan is a single suggested action. TRIM and EXIT rows close
// positions and therefore carry zero forward-looking sizing fields.
type AllocationPlan struct {
	Ticker             string     `json:"ticker"`
	Action             PlanAction `json:"action"`
	Shares             int        `json:"shares"`
	EntryPrice         float64    `json:"entry_price"`
	StopPrice          float64    `json:"stop_price"`
	RiskPerShare       float64    `json:"risk_per_share"`
	CapitalRequired    float64    `json:"capital_required"`
	RiskAmount         float64    `json:"risk_amount"`
	RiskPctOfPortfolio float64    `json:"risk_pct_of_portfolio"`
	Rationale          string     `json:"rationale"`
}

// AllocationResult is the output of the capital allocation engine.
type AllocationResult struct {
	// Portfolio summary
	TotalPortfolioValue float64 `json:"total_portfolio_value"`
	InvestedValue       float64 `json:"invested_value"`
	CashValue           float64 `json:"cash_value"`
	CashPct             float64 `json:"cash_pct"`
	TotalExposurePct    float64 `json:"total_exposure_pct"`
	PositionCount       int     `json:"position_count"`
	MaxPositions        int     `json:"max_positions"`

	// Sector -> % of portfolio, descending by value
	SectorConcentration map[string]float64 `json:"sector_concentration"`

	TrimExitPlans []AllocationPlan `json:"trim_exit_plans"`
	BuyPlans      []AllocationPlan `json:"buy_plans"`

	// RemainingDeployable is the cash above the minimum reserve still
	// unallocated after all buy plans. The weekly narrative reports this
	// figure (cash above reserve, not total weekly deployment).
	RemainingDeployable float64 `json:"remaining_deployable"`

	WeeklyDeploymentPlan string   `json:"weekly_deployment_plan"`
	RiskNotes            []string `json:"risk_notes"`
}
