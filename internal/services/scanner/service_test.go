package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/models"
)

var asOf = time.Date(2025, 11, 14, 0, 0, 0, 0, time.UTC)

func testScannerConfig() common.ScannerConfig {
	return common.ScannerConfig{
		RSIMin:                   45,
		RSIMax:                   65,
		RSIPeriod:                14,
		VolumeExpansionThreshold: 1.2,
		VolumeLookback:           30,
		EarningsBlackoutDays:     5,
		TopN:                     10,
		WeightTrend:              0.30,
		WeightFundamental:        0.25,
		WeightRelativeStrength:   0.20,
		WeightVolume:             0.15,
		WeightValuation:          0.10,
	}
}

func newTestService(cfg common.ScannerConfig, holdings ...models.Holding) *Service {
	portfolio := common.PortfolioConfig{
		TotalValue:         100000,
		MaxPositions:       12,
		MinCashPct:         10,
		MaxRiskPerTradePct: 1.0,
		Holdings:           holdings,
	}
	health := common.HealthConfig{ATRPeriod: 14, ATRStopMult: 2.0, FallbackStopPct: 8.0}
	return NewService(cfg, portfolio, health, "SPY", common.NewSilentLogger())
}

// qualifyingCloses produces a rising zigzag that keeps RSI inside the 45-65
// band: +3 then -2, net +0.5/day.
func qualifyingCloses(n int) []float64 {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		if i%2 == 0 {
			price += 3
		} else {
			price -= 2
		}
		closes[i] = price
	}
	return closes
}

func barsWithVolume(closes []float64, volume int64) []models.Bar {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: volume}
	}
	return bars
}

// qualifyingSeries passes every hard filter: 250 bars, rising, in-band RSI,
// and a 50% volume spike over the last five days.
func qualifyingSeries(ticker string) *models.DailySeries {
	bars := barsWithVolume(qualifyingCloses(250), 2000000)
	for i := len(bars) - 5; i < len(bars); i++ {
		bars[i].Volume = 3000000
	}
	return &models.DailySeries{Ticker: ticker, Bars: bars}
}

func flatBenchmark() *models.DailySeries {
	return &models.DailySeries{Ticker: "SPY", Bars: barsWithVolume(constSlice(400, 250), 1000000)}
}

func constSlice(value float64, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = value
	}
	return s
}

func trendSlice(start, step float64, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = start + step*float64(i)
	}
	return s
}

func ptr(v float64) *float64 { return &v }

func datePtr(t time.Time) *time.Time { return &t }

func goodFundamentals(ticker string) *models.Fundamentals {
	return &models.Fundamentals{
		Ticker:         ticker,
		Sector:         "Technology",
		RevenueGrowth:  ptr(0.12),
		EarningsGrowth: ptr(0.20),
		ProfitMargin:   ptr(0.25),
		ForwardPE:      ptr(25.0),
	}
}

func snapshotOf(series map[string]*models.DailySeries, funds map[string]*models.Fundamentals) *models.MarketSnapshot {
	series["SPY"] = flatBenchmark()
	if funds == nil {
		funds = map[string]*models.Fundamentals{}
	}
	return &models.MarketSnapshot{Daily: series, Fundamentals: funds}
}

func neutralRegime() *models.RegimeResult {
	return &models.RegimeResult{Classification: models.RegimeNeutral, Multiplier: 0.7}
}

func TestScan_QualifyingCandidate(t *testing.T) {
	svc := newTestService(testScannerConfig())
	snapshot := snapshotOf(
		map[string]*models.DailySeries{"NVDA": qualifyingSeries("NVDA")},
		map[string]*models.Fundamentals{"NVDA": goodFundamentals("NVDA")},
	)

	got := svc.Scan(snapshot, neutralRegime(), asOf)

	require.Len(t, got.Candidates, 1)
	c := got.Candidates[0]
	assert.Equal(t, "NVDA", c.Ticker)
	assert.Equal(t, "Technology", c.Sector)
	assert.Equal(t, 1, got.PassedFilter)
	assert.Equal(t, 2, got.UniverseScanned)

	assert.Greater(t, c.CompositeScore, 0.0)
	assert.LessOrEqual(t, c.CompositeScore, 100.0)
	assert.GreaterOrEqual(t, c.RSI, 45.0)
	assert.LessOrEqual(t, c.RSI, 65.0)

	// Trade plan invariants
	assert.Equal(t, c.CurrentPrice, c.EntryZoneHigh)
	assert.LessOrEqual(t, c.EntryZoneLow, c.EntryZoneHigh)
	assert.Less(t, c.SuggestedStop, c.CurrentPrice)
	assert.InDelta(t, c.CurrentPrice-c.SuggestedStop, c.RiskPerShare, 0.01)
	assert.Greater(t, c.PositionSizeShares, 0)

	// 1% of 100k at the 0.7x neutral multiplier
	maxRisk := 100000 * 0.01 * 0.7
	assert.LessOrEqual(t, float64(c.PositionSizeShares)*c.RiskPerShare, maxRisk+c.RiskPerShare)

	assert.NotEmpty(t, c.BullScenario)
	assert.NotEmpty(t, c.BaseScenario)
	assert.NotEmpty(t, c.BearScenario)
	assert.NotEmpty(t, c.SixMonthOutlook)
}

func TestScan_FilterRejections(t *testing.T) {
	tests := []struct {
		name     string
		series   *models.DailySeries
		fund     *models.Fundamentals
		holdings []models.Holding
	}{
		{
			name:     "held ticker skipped",
			series:   qualifyingSeries("NVDA"),
			fund:     goodFundamentals("NVDA"),
			holdings: []models.Holding{{Ticker: "NVDA", Shares: 10, AvgCost: 100}},
		},
		{
			name:   "insufficient history",
			series: &models.DailySeries{Ticker: "NVDA", Bars: barsWithVolume(qualifyingCloses(150), 2000000)},
			fund:   goodFundamentals("NVDA"),
		},
		{
			name:   "below 200-day MA",
			series: &models.DailySeries{Ticker: "NVDA", Bars: barsWithVolume(trendSlice(400, -0.5, 250), 2000000)},
			fund:   goodFundamentals("NVDA"),
		},
		{
			name: "RSI undefined on one-way tape",
			// Monotonic rise has no losses, leaving RSI undefined
			series: &models.DailySeries{Ticker: "NVDA", Bars: barsWithVolume(trendSlice(100, 0.5, 250), 2000000)},
			fund:   goodFundamentals("NVDA"),
		},
		{
			name: "no volume expansion",
			series: &models.DailySeries{
				Ticker: "NVDA",
				Bars:   barsWithVolume(qualifyingCloses(250), 2000000),
			},
			fund: goodFundamentals("NVDA"),
		},
		{
			name:   "negative earnings growth",
			series: qualifyingSeries("NVDA"),
			fund: &models.Fundamentals{
				Ticker:         "NVDA",
				Sector:         "Technology",
				EarningsGrowth: ptr(-0.10),
			},
		},
		{
			name:   "earnings inside blackout window",
			series: qualifyingSeries("NVDA"),
			fund: &models.Fundamentals{
				Ticker:           "NVDA",
				Sector:           "Technology",
				EarningsGrowth:   ptr(0.20),
				NextEarningsDate: datePtr(asOf.AddDate(0, 0, 3)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(testScannerConfig(), tt.holdings...)
			snapshot := snapshotOf(
				map[string]*models.DailySeries{"NVDA": tt.series},
				map[string]*models.Fundamentals{"NVDA": tt.fund},
			)
			got := svc.Scan(snapshot, neutralRegime(), asOf)
			assert.Empty(t, got.Candidates)
		})
	}
}

func TestScan_BenefitOfTheDoubt(t *testing.T) {
	// Missing fundamentals must not disqualify a technically sound ticker
	svc := newTestService(testScannerConfig())
	snapshot := snapshotOf(
		map[string]*models.DailySeries{"NVDA": qualifyingSeries("NVDA")},
		nil,
	)

	got := svc.Scan(snapshot, neutralRegime(), asOf)

	require.Len(t, got.Candidates, 1)
	c := got.Candidates[0]
	assert.Equal(t, "Unknown", c.Sector)
	// Unknown growth and valuation default to the midpoint
	assert.Equal(t, 50.0, c.FundamentalGrowth)
	assert.Equal(t, 50.0, c.ValuationVsGrowth)
}

func TestScan_EarningsOutsideBlackoutPasses(t *testing.T) {
	for _, offset := range []int{10, -2} {
		fund := goodFundamentals("NVDA")
		fund.NextEarningsDate = datePtr(asOf.AddDate(0, 0, offset))

		svc := newTestService(testScannerConfig())
		snapshot := snapshotOf(
			map[string]*models.DailySeries{"NVDA": qualifyingSeries("NVDA")},
			map[string]*models.Fundamentals{"NVDA": fund},
		)
		got := svc.Scan(snapshot, neutralRegime(), asOf)
		assert.Len(t, got.Candidates, 1, "earnings offset %d days", offset)
	}
}

func TestScan_DeterministicTieBreak(t *testing.T) {
	svc := newTestService(testScannerConfig())
	snapshot := snapshotOf(
		map[string]*models.DailySeries{
			"BBB": qualifyingSeries("BBB"),
			"AAA": qualifyingSeries("AAA"),
		},
		map[string]*models.Fundamentals{
			"AAA": goodFundamentals("AAA"),
			"BBB": goodFundamentals("BBB"),
		},
	)

	got := svc.Scan(snapshot, neutralRegime(), asOf)

	require.Len(t, got.Candidates, 2)
	assert.Equal(t, got.Candidates[0].CompositeScore, got.Candidates[1].CompositeScore)
	assert.Equal(t, "AAA", got.Candidates[0].Ticker)
	assert.Equal(t, "BBB", got.Candidates[1].Ticker)
}

func TestScan_TopNTruncation(t *testing.T) {
	cfg := testScannerConfig()
	cfg.TopN = 1

	svc := newTestService(cfg)
	snapshot := snapshotOf(
		map[string]*models.DailySeries{
			"AAA": qualifyingSeries("AAA"),
			"BBB": qualifyingSeries("BBB"),
		},
		nil,
	)

	got := svc.Scan(snapshot, neutralRegime(), asOf)

	assert.Equal(t, 2, got.PassedFilter)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "AAA", got.Candidates[0].Ticker)
}

func TestScan_PEGValuationBuckets(t *testing.T) {
	tests := []struct {
		name      string
		forwardPE *float64
		growth    *float64
		want      float64
	}{
		{"cheap growth", ptr(15.0), ptr(0.20), 80},   // PEG 0.75
		{"fair growth", ptr(30.0), ptr(0.20), 60},    // PEG 1.5
		{"stretched", ptr(50.0), ptr(0.20), 40},      // PEG 2.5
		{"expensive", ptr(80.0), ptr(0.20), 20},      // PEG 4.0
		{"unknown PE", nil, ptr(0.20), 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fund := goodFundamentals("NVDA")
			fund.ForwardPE = tt.forwardPE
			fund.EarningsGrowth = tt.growth

			svc := newTestService(testScannerConfig())
			snapshot := snapshotOf(
				map[string]*models.DailySeries{"NVDA": qualifyingSeries("NVDA")},
				map[string]*models.Fundamentals{"NVDA": fund},
			)
			got := svc.Scan(snapshot, neutralRegime(), asOf)
			require.Len(t, got.Candidates, 1)
			assert.Equal(t, tt.want, got.Candidates[0].ValuationVsGrowth)
		})
	}
}
