package models

import "time"

// RunRecord is the stored summary of one completed pipeline run.
type RunRecord struct {
	ID          string      `json:"id" badgerhold:"key"`
	GeneratedAt time.Time   `json:"generated_at"`
	Regime      RegimeClass `json:"regime"`
	Multiplier  float64     `json:"multiplier"`
	CoveragePct float64     `json:"coverage_pct"`

	HoldingCount   int `json:"holding_count"`
	CandidateCount int `json:"candidate_count"`
	BuyPlanCount   int `json:"buy_plan_count"`
	TrimExitCount  int `json:"trim_exit_count"`

	// Full report bundle serialized as JSON for later inspection
	ReportJSON string `json:"report_json,omitempty"`
}

// DecisionReport is the complete output bundle of one pipeline run: the four
// engine results plus run metadata. All fields are plain structured data for
// the report renderer; nothing here is mutated after construction.
type DecisionReport struct {
	GeneratedAt      time.Time         `json:"generated_at"`
	Regime           *RegimeResult     `json:"regime"`
	Health           *HealthResult     `json:"health"`
	Screen           *ScreenResult     `json:"screen"`
	Allocation       *AllocationResult `json:"allocation"`
	ExternalHoldings []ExternalHolding `json:"external_holdings,omitempty"`
	CoveragePct      float64           `json:"coverage_pct"`
	UniverseSize     int               `json:"universe_size"`
}
