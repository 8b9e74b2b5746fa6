package models

// RegimeClass is the market-risk classification produced by the regime engine.
type RegimeClass string

const (
	RegimeRiskOn  RegimeClass = "RISK_ON"
	RegimeNeutral RegimeClass = "NEUTRAL"
	RegimeRiskOff RegimeClass = "RISK_OFF"
)

// Multiplier returns the fixed position-size multiplier for a classification.
// The mapping is the single lever the rest of the pipeline uses to scale
// risk and must never be derived dynamically.
func (c RegimeClass) Multiplier() float64 {
	switch c {
	case RegimeRiskOn:
		return 1.0
	case RegimeRiskOff:
		return 0.4
	default:
		return 0.7
	}
}

// RegimeResult is the output of the market regime engine. It is created once
// per pipeline run and read-only downstream.
type RegimeResult struct {
	Classification RegimeClass       `json:"classification"`
	Multiplier     float64           `json:"multiplier"`
	Explanation    string            `json:"explanation"`
	Signals        map[string]string `json:"signals"`

	// Snapshot values for the report
	BenchmarkPrice float64 `json:"benchmark_price"`
	Benchmark200MA float64 `json:"benchmark_200ma"`
	Benchmark50MA  float64 `json:"benchmark_50ma"`
	VolIndexLevel  float64 `json:"vol_index_level"`
	RateYield      float64 `json:"rate_yield"`
}
