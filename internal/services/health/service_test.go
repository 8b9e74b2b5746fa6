package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/models"
)

func testHealthConfig() common.HealthConfig {
	return common.HealthConfig{ATRPeriod: 14, ATRStopMult: 2.0, FallbackStopPct: 8.0}
}

func newTestService(holdings ...models.Holding) *Service {
	portfolio := common.PortfolioConfig{
		TotalValue:         100000,
		MaxPositions:       12,
		MinCashPct:         10,
		MaxRiskPerTradePct: 1.0,
		Holdings:           holdings,
	}
	return NewService(testHealthConfig(), portfolio, "SPY", common.NewSilentLogger())
}

func seriesOf(ticker string, closes []float64) *models.DailySeries {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000000}
	}
	return &models.DailySeries{Ticker: ticker, Bars: bars}
}

func linear(start, step float64, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = start + step*float64(i)
	}
	return s
}

func constant(value float64, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = value
	}
	return s
}

func ptr(v float64) *float64 { return &v }

func riskOnRegime() *models.RegimeResult {
	return &models.RegimeResult{Classification: models.RegimeRiskOn, Multiplier: 1.0}
}

func TestScore_StrongHolding(t *testing.T) {
	svc := newTestService(models.Holding{Ticker: "NVDA", Shares: 10, AvgCost: 80})

	snapshot := &models.MarketSnapshot{
		Daily: map[string]*models.DailySeries{
			"NVDA": seriesOf("NVDA", linear(100, 0.5, 250)),
			"SPY":  seriesOf("SPY", constant(400, 250)),
		},
		Fundamentals: map[string]*models.Fundamentals{
			"NVDA": {
				Ticker:         "NVDA",
				Sector:         "Technology",
				RevenueGrowth:  ptr(0.15),
				EarningsGrowth: ptr(0.25),
				ProfitMargin:   ptr(0.30),
			},
		},
	}

	got := svc.Score(snapshot, riskOnRegime())
	require.Len(t, got.Holdings, 1)
	h := got.Holdings[0]

	// Rising monotonic series: above both MAs but no swing peaks
	assert.Equal(t, 2, h.TrendScore)
	assert.Equal(t, 3, h.FundamentalScore)
	assert.Equal(t, 2, h.RelativeStrengthScore)
	// Technology in RISK_ON: sector plus regime alignment
	assert.Equal(t, 2, h.MacroAlignmentScore)
	assert.Equal(t, 9, h.TotalScore)
	assert.Equal(t, models.DecisionStrongHold, h.Decision)

	lastClose := 100 + 0.5*249
	assert.InDelta(t, lastClose, h.CurrentPrice, 1e-9)
	assert.InDelta(t, (lastClose-80)/80*100, h.UnrealizedPnLPct, 0.01)
	assert.Empty(t, got.ActionsRequired)
}

func TestScore_WeakHoldingExits(t *testing.T) {
	svc := newTestService(models.Holding{Ticker: "XYZ", Shares: 10, AvgCost: 300})

	snapshot := &models.MarketSnapshot{
		Daily: map[string]*models.DailySeries{
			"XYZ": seriesOf("XYZ", linear(300, -0.5, 250)),
			"SPY": seriesOf("SPY", constant(400, 250)),
		},
		Fundamentals: map[string]*models.Fundamentals{},
	}
	regime := &models.RegimeResult{Classification: models.RegimeRiskOff, Multiplier: 0.4}

	got := svc.Score(snapshot, regime)
	require.Len(t, got.Holdings, 1)
	h := got.Holdings[0]

	assert.Equal(t, 0, h.TrendScore)
	assert.Equal(t, 0, h.FundamentalScore)
	assert.Equal(t, 0, h.RelativeStrengthScore)
	// Unknown sector gets no point in RISK_OFF, and RISK_OFF itself adds none
	assert.Equal(t, 0, h.MacroAlignmentScore)
	assert.Equal(t, models.DecisionExit, h.Decision)
	require.Len(t, got.ActionsRequired, 1)
	assert.Contains(t, got.ActionsRequired[0], "EXIT XYZ")
}

func TestScore_NoDataHolding(t *testing.T) {
	svc := newTestService(models.Holding{Ticker: "GHOST", Shares: 5, AvgCost: 50})

	snapshot := &models.MarketSnapshot{
		Daily:        map[string]*models.DailySeries{},
		Fundamentals: map[string]*models.Fundamentals{},
	}

	got := svc.Score(snapshot, riskOnRegime())
	require.Len(t, got.Holdings, 1)
	h := got.Holdings[0]

	assert.Equal(t, models.DecisionExit, h.Decision)
	assert.Equal(t, 0, h.TotalScore)
	assert.Equal(t, "No market data available for GHOST. Cannot assess - recommend exiting.", h.Explanation)
	require.Len(t, got.ActionsRequired, 1)
	assert.Contains(t, got.ActionsRequired[0], "No data available")
}

func TestScore_NeutralRegimeSectorPoint(t *testing.T) {
	// In NEUTRAL any sector earns the alignment point but not the regime point
	svc := newTestService(models.Holding{Ticker: "XOM", Shares: 10, AvgCost: 100})

	snapshot := &models.MarketSnapshot{
		Daily: map[string]*models.DailySeries{
			"XOM": seriesOf("XOM", constant(100, 250)),
			"SPY": seriesOf("SPY", constant(400, 250)),
		},
		Fundamentals: map[string]*models.Fundamentals{
			"XOM": {Ticker: "XOM", Sector: "Energy"},
		},
	}
	regime := &models.RegimeResult{Classification: models.RegimeNeutral, Multiplier: 0.7}

	got := svc.Score(snapshot, regime)
	require.Len(t, got.Holdings, 1)
	assert.Equal(t, 1, got.Holdings[0].MacroAlignmentScore)
	assert.Equal(t, "NEUTRAL", got.Holdings[0].MacroDetails["sector_alignment"])
}

func TestScore_ATRStop(t *testing.T) {
	svc := newTestService(models.Holding{Ticker: "FLAT", Shares: 10, AvgCost: 100})

	// Constant closes with a fixed 2-point daily range: ATR(14) = 2
	snapshot := &models.MarketSnapshot{
		Daily: map[string]*models.DailySeries{
			"FLAT": seriesOf("FLAT", constant(100, 250)),
			"SPY":  seriesOf("SPY", constant(400, 250)),
		},
		Fundamentals: map[string]*models.Fundamentals{},
	}

	got := svc.Score(snapshot, riskOnRegime())
	require.Len(t, got.Holdings, 1)
	h := got.Holdings[0]

	assert.InDelta(t, 96.0, h.SuggestedStop, 1e-9) // 100 - 2*ATR
	assert.InDelta(t, 4.0, h.RiskPerShare, 1e-9)
	// 10 shares * $4 risk on a $100k book
	assert.InDelta(t, 0.04, h.RiskAsPctOfPortfolio, 1e-9)
}

func TestScore_FallbackStop(t *testing.T) {
	svc := newTestService(models.Holding{Ticker: "THIN", Shares: 10, AvgCost: 100})

	// Too few bars for ATR: stop falls back to a fixed percentage
	snapshot := &models.MarketSnapshot{
		Daily: map[string]*models.DailySeries{
			"THIN": seriesOf("THIN", constant(100, 10)),
			"SPY":  seriesOf("SPY", constant(400, 250)),
		},
		Fundamentals: map[string]*models.Fundamentals{},
	}

	got := svc.Score(snapshot, riskOnRegime())
	require.Len(t, got.Holdings, 1)
	assert.InDelta(t, 92.0, got.Holdings[0].SuggestedStop, 1e-9)
}

func TestScore_PortfolioTotals(t *testing.T) {
	svc := newTestService(
		models.Holding{Ticker: "AAA", Shares: 10, AvgCost: 100},
		models.Holding{Ticker: "BBB", Shares: 20, AvgCost: 50},
	)

	snapshot := &models.MarketSnapshot{
		Daily: map[string]*models.DailySeries{
			"AAA": seriesOf("AAA", constant(110, 250)), // +10%
			"BBB": seriesOf("BBB", constant(55, 250)),  // +10%
			"SPY": seriesOf("SPY", constant(400, 250)),
		},
		Fundamentals: map[string]*models.Fundamentals{},
	}

	got := svc.Score(snapshot, riskOnRegime())

	assert.InDelta(t, 2000.0, got.TotalInvested, 1e-9)
	assert.InDelta(t, 2200.0, got.TotalCurrentValue, 1e-9)
	assert.InDelta(t, 10.0, got.TotalPnLPct, 1e-9)
}
