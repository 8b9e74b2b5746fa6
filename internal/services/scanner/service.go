// Package scanner screens the universe for trade candidates using ordered
// hard filters, then ranks survivors by a weighted composite score.
package scanner

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/models"
	"github.com/bobmcallan/keel/internal/signals"
)

const (
	minBarsRequired  = 200
	trendSlopeWindow = 50
	recentVolumeDays = 5
	relStrengthDays  = 60
	scenarioDays     = 30
)

// Service implements the opportunity scanner
type Service struct {
	scanner   common.ScannerConfig
	portfolio common.PortfolioConfig
	health    common.HealthConfig
	benchmark string
	logger    *common.Logger
}

// NewService creates a new scanner service. benchmark is the ticker used for
// relative strength comparisons.
func NewService(scanner common.ScannerConfig, portfolio common.PortfolioConfig, health common.HealthConfig, benchmark string, logger *common.Logger) *Service {
	return &Service{
		scanner:   scanner,
		portfolio: portfolio,
		health:    health,
		benchmark: benchmark,
		logger:    logger,
	}
}

// candidate carries a ticker through filtering into scoring.
type candidate struct {
	ticker   string
	series   *models.DailySeries
	fund     *models.Fundamentals
	rsi      float64
	volRatio float64
}

// Scan filters and ranks all non-held tickers in the snapshot. asOf anchors
// the earnings blackout check so reruns over the same snapshot are
// reproducible.
func (s *Service) Scan(snapshot *models.MarketSnapshot, regime *models.RegimeResult, asOf time.Time) *models.ScreenResult {
	held := make(map[string]bool, len(s.portfolio.Holdings))
	for _, h := range s.portfolio.Holdings {
		held[h.Ticker] = true
	}

	var benchmarkClose []float64
	if bench := snapshot.Series(s.benchmark); bench.Len() > 0 {
		benchmarkClose = bench.Closes()
	}

	tickers := make([]string, 0, len(snapshot.Daily))
	for t := range snapshot.Daily {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var passed []candidate
	for _, ticker := range tickers {
		if held[ticker] {
			continue
		}
		series := snapshot.Daily[ticker]
		if series.Len() < minBarsRequired {
			continue
		}

		closes := series.Closes()
		fund := snapshot.Fundamental(ticker)

		// Filters run cheapest-first; a ticker is dropped at the first miss.

		if !signals.IsAboveMA(closes, 200) {
			continue
		}

		if !signals.MARising(closes, 50, 20) {
			continue
		}

		rsi, ok := signals.RSI(closes, s.scanner.RSIPeriod)
		if !ok || rsi < s.scanner.RSIMin || rsi > s.scanner.RSIMax {
			continue
		}

		if series.Len() < s.scanner.VolumeLookback {
			continue
		}
		volRatio := signals.VolumeRatio(series.Bars, recentVolumeDays, s.scanner.VolumeLookback)
		if volRatio < s.scanner.VolumeExpansionThreshold {
			continue
		}

		// Missing fundamentals get the benefit of the doubt
		if fund != nil && fund.EarningsGrowth != nil && *fund.EarningsGrowth <= 0 {
			continue
		}

		if fund != nil && fund.NextEarningsDate != nil {
			days := int(fund.NextEarningsDate.Sub(asOf.Truncate(24*time.Hour)).Hours() / 24)
			if days >= 0 && days <= s.scanner.EarningsBlackoutDays {
				continue
			}
		}

		passed = append(passed, candidate{
			ticker:   ticker,
			series:   series,
			fund:     fund,
			rsi:      rsi,
			volRatio: volRatio,
		})
	}

	s.logger.Info().
		Int("passed", len(passed)).
		Int("scanned", len(snapshot.Daily)).
		Msg("Scanner filters applied")

	scored := make([]models.Candidate, 0, len(passed))
	for _, c := range passed {
		scored = append(scored, s.score(c, regime, benchmarkClose))
	}

	// Rank by score descending; equal scores break by ticker so the order
	// is stable across runs.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].CompositeScore != scored[j].CompositeScore {
			return scored[i].CompositeScore > scored[j].CompositeScore
		}
		return scored[i].Ticker < scored[j].Ticker
	})

	top := scored
	if len(top) > s.scanner.TopN {
		top = top[:s.scanner.TopN]
	}

	return &models.ScreenResult{
		Candidates:       top,
		UniverseScanned:  len(snapshot.Daily),
		PassedFilter:     len(passed),
		Regime:           regime.Classification,
		RegimeMultiplier: regime.Multiplier,
	}
}

// score computes the composite score and trade plan for one filtered ticker.
func (s *Service) score(c candidate, regime *models.RegimeResult, benchmarkClose []float64) models.Candidate {
	cfg := s.scanner
	closes := c.series.Closes()
	price := closes[len(closes)-1]

	// Trend strength: normalized slope, amplified into a 0-100 band
	trendRaw := clamp(signals.Slope(closes, trendSlopeWindow)*10000, 0, 100)

	// Fundamental growth
	fundRaw := 50.0
	if c.fund != nil {
		eg, rg := 0.0, 0.0
		if c.fund.EarningsGrowth != nil {
			eg = *c.fund.EarningsGrowth
		}
		if c.fund.RevenueGrowth != nil {
			rg = *c.fund.RevenueGrowth
		}
		fundRaw = clamp((eg*100+rg*100)/2+50, 0, 100)
	}

	// Relative strength
	rs := 50.0
	if len(benchmarkClose) > 0 && len(closes) >= relStrengthDays {
		rs = clamp(signals.RelativeStrength(closes, benchmarkClose, relStrengthDays)+50, 0, 100)
	}

	// Volume expansion
	volRaw := clamp((c.volRatio-1.0)*200+50, 0, 100)

	// Valuation vs growth via a coarse PEG bucket
	valRaw := 50.0
	if c.fund != nil && c.fund.ForwardPE != nil && *c.fund.ForwardPE != 0 &&
		c.fund.EarningsGrowth != nil && *c.fund.EarningsGrowth != 0 {
		peg := 99.0
		if *c.fund.EarningsGrowth > 0 {
			peg = *c.fund.ForwardPE / (*c.fund.EarningsGrowth * 100)
		}
		switch {
		case peg < 1:
			valRaw = 80
		case peg < 2:
			valRaw = 60
		case peg < 3:
			valRaw = 40
		default:
			valRaw = 20
		}
	}

	composite := trendRaw*cfg.WeightTrend +
		fundRaw*cfg.WeightFundamental +
		rs*cfg.WeightRelativeStrength +
		volRaw*cfg.WeightVolume +
		valRaw*cfg.WeightValuation

	// Trade plan
	atr := signals.ATR(c.series.Bars, s.health.ATRPeriod)
	stop := price * (1 - s.health.FallbackStopPct/100)
	if atr > 0 {
		stop = price - s.health.ATRStopMult*atr
	}
	riskPerShare := price - stop

	ma50, ok := signals.SMA(closes, 50)
	if !ok {
		ma50 = price * 0.97
	}
	entryLow := round2(math.Min(ma50, price*0.98))
	entryHigh := round2(price)

	maxRisk := s.portfolio.TotalValue * (s.portfolio.MaxRiskPerTradePct / 100) * regime.Multiplier
	posSize := 0
	if riskPerShare > 0 {
		posSize = int(maxRisk / riskPerShare)
	}
	capitalReq := float64(posSize) * price

	bull, base, bear := scenarios(price, atr)
	outlook := sixMonthOutlook(c.ticker, trendRaw, fundRaw, rs, regime.Classification)

	sector := "Unknown"
	if c.fund != nil && c.fund.Sector != "" {
		sector = c.fund.Sector
	}

	out := models.Candidate{
		Ticker:             c.ticker,
		Sector:             sector,
		CurrentPrice:       round2(price),
		CompositeScore:     round2(composite),
		TrendStrength:      round1(trendRaw),
		FundamentalGrowth:  round1(fundRaw),
		RelStrength:        round1(rs),
		VolumeExpansion:    round1(volRaw),
		ValuationVsGrowth:  round1(valRaw),
		EntryZoneLow:       entryLow,
		EntryZoneHigh:      entryHigh,
		SuggestedStop:      round2(stop),
		RiskPerShare:       round2(riskPerShare),
		PositionSizeShares: posSize,
		CapitalRequired:    round2(capitalReq),
		BullScenario:       bull,
		BaseScenario:       base,
		BearScenario:       bear,
		SixMonthOutlook:    outlook,
		RSI:                round1(c.rsi),
		PctFrom50MA:        round2(signals.PctFromMA(closes, 50)),
		PctFrom200MA:       round2(signals.PctFromMA(closes, 200)),
		AvgVolumeRatio:     round2(c.volRatio),
	}
	if c.fund != nil {
		out.EarningsGrowth = c.fund.EarningsGrowth
		out.RevenueGrowth = c.fund.RevenueGrowth
		out.NextEarnings = c.fund.NextEarningsDate
	}
	return out
}

// scenarios builds the 6-week bull/base/bear narratives from an ATR-scaled
// expected move (~30 trading days).
func scenarios(price, atr float64) (bull, base, bear string) {
	move := price * 0.08
	if atr > 0 {
		move = atr * math.Sqrt(scenarioDays)
	}

	bullTarget := price + move*1.5
	baseTarget := price + move*0.3
	bearTarget := price - move

	bull = fmt.Sprintf(
		"Bull (30%% probability): Price reaches $%.2f (+%.1f%%) on continued momentum and favorable earnings.",
		bullTarget, (bullTarget/price-1)*100)
	base = fmt.Sprintf(
		"Base (50%% probability): Price consolidates around $%.2f (%+.1f%%) with normal volatility.",
		baseTarget, (baseTarget/price-1)*100)
	bear = fmt.Sprintf(
		"Bear (20%% probability): Price pulls back to $%.2f (%+.1f%%) on broader market weakness or negative catalysts.",
		bearTarget, (bearTarget/price-1)*100)
	return bull, base, bear
}

func sixMonthOutlook(ticker string, trend, fund, rs float64, regime models.RegimeClass) string {
	avg := (trend + fund + rs) / 3
	switch {
	case avg >= 65 && (regime == models.RegimeRiskOn || regime == models.RegimeNeutral):
		return fmt.Sprintf(
			"%s has above-average trend strength, solid fundamentals, and favorable relative strength. "+
				"In the current %s environment, the probability of meaningful appreciation over 6 months "+
				"is elevated, though market-wide corrections remain a risk.",
			ticker, regime)
	case avg >= 40:
		return fmt.Sprintf(
			"%s shows moderate potential with mixed signals across trend, fundamentals, and relative "+
				"strength. Position sizing should reflect this uncertainty. Monitor for improvement in "+
				"weaker sub-scores.",
			ticker)
	default:
		return fmt.Sprintf(
			"%s scores below average. While it passed technical filters, fundamental or relative "+
				"strength concerns limit conviction. Consider smaller position or wait for a "+
				"higher-confidence setup.",
			ticker)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
