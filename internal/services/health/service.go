// Package health scores each portfolio holding on trend, fundamentals,
// relative strength, and macro alignment, then maps the total to a hold,
// trim, or exit decision.
package health

import (
	"fmt"
	"math"
	"strings"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/models"
	"github.com/bobmcallan/keel/internal/signals"
)

// Scoring windows are fixed; they define what the sub-scores mean and are
// not tunable alongside the scanner thresholds.
const (
	trendMALong      = 200
	trendMAShort     = 50
	higherHighWindow = 30
	relStrengthDays  = 60
	profitMarginMin  = 0.05
)

// Sectors that tend to outperform in each regime.
var (
	riskOnSectors = map[string]bool{
		"Technology":             true,
		"Consumer Cyclical":      true,
		"Communication Services": true,
		"Financial Services":     true,
	}
	riskOffSectors = map[string]bool{
		"Utilities":          true,
		"Consumer Defensive": true,
		"Healthcare":         true,
		"Real Estate":        true,
	}
)

// Service implements the holding health engine
type Service struct {
	health    common.HealthConfig
	portfolio common.PortfolioConfig
	benchmark string
	logger    *common.Logger
}

// NewService creates a new health service. benchmark is the ticker used for
// relative strength comparisons.
func NewService(health common.HealthConfig, portfolio common.PortfolioConfig, benchmark string, logger *common.Logger) *Service {
	return &Service{
		health:    health,
		portfolio: portfolio,
		benchmark: benchmark,
		logger:    logger,
	}
}

// Score assesses every holding against the snapshot and regime.
func (s *Service) Score(snapshot *models.MarketSnapshot, regime *models.RegimeResult) *models.HealthResult {
	var (
		out            []models.HoldingHealth
		actions        []string
		totalInvested  float64
		totalCurrent   float64
		benchmarkClose []float64
	)

	if bench := snapshot.Series(s.benchmark); bench.Len() > 0 {
		benchmarkClose = bench.Closes()
	}

	for _, h := range s.portfolio.Holdings {
		series := snapshot.Series(h.Ticker)
		fund := snapshot.Fundamental(h.Ticker)

		if series.Len() == 0 {
			s.logger.Warn().Str("ticker", h.Ticker).Msg("No data for holding, marking for EXIT")
			hh := emptyHolding(h)
			hh.Explanation = fmt.Sprintf("No market data available for %s. Cannot assess - recommend exiting.", h.Ticker)
			out = append(out, hh)
			actions = append(actions, fmt.Sprintf("EXIT %s: No data available", h.Ticker))
			continue
		}

		closes := series.Closes()
		currentPrice := closes[len(closes)-1]
		positionValue := h.Shares * currentPrice
		invested := h.Shares * h.AvgCost
		pnlPct := 0.0
		if h.AvgCost > 0 {
			pnlPct = (currentPrice - h.AvgCost) / h.AvgCost * 100
		}

		totalInvested += invested
		totalCurrent += positionValue

		// Trend (0-3)
		trendScore := 0
		trendDetails := make(map[string]string)

		if signals.IsAboveMA(closes, trendMALong) {
			trendScore++
			trendDetails["above_200ma"] = "YES"
		} else {
			trendDetails["above_200ma"] = "NO"
		}
		if signals.IsAboveMA(closes, trendMAShort) {
			trendScore++
			trendDetails["above_50ma"] = "YES"
		} else {
			trendDetails["above_50ma"] = "NO"
		}
		if signals.HigherHighs(closes, higherHighWindow, 2) {
			trendScore++
			trendDetails["higher_highs"] = "YES"
		} else {
			trendDetails["higher_highs"] = "NO"
		}

		// Fundamentals (0-3)
		fundScore := 0
		fundDetails := make(map[string]string)

		if fund != nil {
			if fund.RevenueGrowth != nil && *fund.RevenueGrowth > 0 {
				fundScore++
			}
			fundDetails["revenue_growth"] = formatGrowth(fund.RevenueGrowth)

			if fund.EarningsGrowth != nil && *fund.EarningsGrowth > 0 {
				fundScore++
			}
			fundDetails["earnings_growth"] = formatGrowth(fund.EarningsGrowth)

			if fund.ProfitMargin != nil && *fund.ProfitMargin > profitMarginMin {
				fundScore++
			}
			fundDetails["profit_margin"] = formatGrowth(fund.ProfitMargin)
		} else {
			fundDetails["data"] = "UNAVAILABLE"
		}

		// Relative strength (0-2)
		rsScore := 0
		rsDetails := make(map[string]string)

		if len(benchmarkClose) > 0 && len(closes) >= relStrengthDays {
			rs := signals.RelativeStrength(closes, benchmarkClose, relStrengthDays)
			rsDetails["vs_benchmark_60d"] = fmt.Sprintf("%+.1f%%", rs)
			switch {
			case rs > 5:
				rsScore = 2
			case rs > 0:
				rsScore = 1
			}
		} else {
			rsDetails["vs_benchmark_60d"] = "N/A"
		}

		// Macro alignment (0-2)
		macroScore := 0
		macroDetails := make(map[string]string)

		sector := "Unknown"
		if fund != nil && fund.Sector != "" {
			sector = fund.Sector
		}
		macroDetails["sector"] = sector

		switch {
		case regime.Classification == models.RegimeRiskOn && riskOnSectors[sector]:
			macroScore++
			macroDetails["sector_alignment"] = "FAVORABLE"
		case regime.Classification == models.RegimeRiskOff && riskOffSectors[sector]:
			macroScore++
			macroDetails["sector_alignment"] = "FAVORABLE"
		case regime.Classification == models.RegimeNeutral:
			macroScore++ // neutral is fine for any sector
			macroDetails["sector_alignment"] = "NEUTRAL"
		default:
			macroDetails["sector_alignment"] = "UNFAVORABLE"
		}

		switch regime.Classification {
		case models.RegimeRiskOn:
			macroScore++
			macroDetails["regime_alignment"] = "STRONG"
		case models.RegimeNeutral:
			macroDetails["regime_alignment"] = "MODERATE"
		default:
			macroDetails["regime_alignment"] = "WEAK"
		}

		total := trendScore + fundScore + rsScore + macroScore
		decision := models.DecisionForScore(total)

		// Risk metrics
		pct50 := signals.PctFromMA(closes, trendMAShort)
		pct200 := signals.PctFromMA(closes, trendMALong)
		atr := signals.ATR(series.Bars, s.health.ATRPeriod)
		stop := currentPrice * (1 - s.health.FallbackStopPct/100)
		if atr > 0 {
			stop = currentPrice - s.health.ATRStopMult*atr
		}
		riskPerShare := currentPrice - stop
		portfolioRisk := 0.0
		if s.portfolio.TotalValue > 0 {
			portfolioRisk = h.Shares * riskPerShare / s.portfolio.TotalValue * 100
		}

		explanation := buildExplanation(h.Ticker, decision, total, trendScore, fundScore, rsScore, macroScore, currentPrice, pnlPct, sector)

		if decision == models.DecisionTrim25 || decision == models.DecisionExit {
			actions = append(actions, fmt.Sprintf("%s %s: score %d/10, P&L %+.1f%%", decision, h.Ticker, total, pnlPct))
		}

		out = append(out, models.HoldingHealth{
			Ticker:                h.Ticker,
			Shares:                h.Shares,
			AvgCost:               h.AvgCost,
			CurrentPrice:          currentPrice,
			UnrealizedPnLPct:      round2(pnlPct),
			TrendScore:            trendScore,
			FundamentalScore:      fundScore,
			RelativeStrengthScore: rsScore,
			MacroAlignmentScore:   macroScore,
			TotalScore:            total,
			Decision:              decision,
			Explanation:           explanation,
			PctFrom50MA:           round2(pct50),
			PctFrom200MA:          round2(pct200),
			SuggestedStop:         round2(stop),
			RiskPerShare:          round2(riskPerShare),
			PositionValue:         round2(positionValue),
			RiskAsPctOfPortfolio:  round2(portfolioRisk),
			TrendDetails:          trendDetails,
			FundamentalDetails:    fundDetails,
			RSDetails:             rsDetails,
			MacroDetails:          macroDetails,
		})
	}

	totalPnL := 0.0
	if totalInvested > 0 {
		totalPnL = (totalCurrent - totalInvested) / totalInvested * 100
	}

	s.logger.Info().
		Int("holdings", len(out)).
		Float64("pnl_pct", round2(totalPnL)).
		Int("actions", len(actions)).
		Msg("Portfolio health scored")

	return &models.HealthResult{
		Holdings:          out,
		TotalInvested:     round2(totalInvested),
		TotalCurrentValue: round2(totalCurrent),
		TotalPnLPct:       round2(totalPnL),
		ActionsRequired:   actions,
	}
}

// emptyHolding returns a zero-scored EXIT assessment for a holding with no
// market data.
func emptyHolding(h models.Holding) models.HoldingHealth {
	return models.HoldingHealth{
		Ticker:             h.Ticker,
		Shares:             h.Shares,
		AvgCost:            h.AvgCost,
		Decision:           models.DecisionExit,
		TrendDetails:       map[string]string{},
		FundamentalDetails: map[string]string{},
		RSDetails:          map[string]string{},
		MacroDetails:       map[string]string{},
	}
}

func formatGrowth(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%+.1f%%", *v*100)
}

func buildExplanation(ticker string, decision models.HealthDecision, total, trend, fund, rs, macro int, price, pnl float64, sector string) string {
	var strengths, weaknesses []string

	if trend >= 2 {
		strengths = append(strengths, "strong uptrend")
	} else if trend == 0 {
		weaknesses = append(weaknesses, "weak trend structure")
	}

	if fund >= 2 {
		strengths = append(strengths, "solid fundamentals")
	} else if fund == 0 {
		weaknesses = append(weaknesses, "deteriorating fundamentals")
	}

	if rs >= 1 {
		strengths = append(strengths, "outperforming the market")
	} else {
		weaknesses = append(weaknesses, "underperforming vs the benchmark")
	}

	if macro >= 1 {
		strengths = append(strengths, fmt.Sprintf("%s sector aligned with current regime", sector))
	}

	var parts []string
	if len(strengths) > 0 {
		parts = append(parts, fmt.Sprintf("Strengths: %s.", strings.Join(strengths, ", ")))
	}
	if len(weaknesses) > 0 {
		parts = append(parts, fmt.Sprintf("Concerns: %s.", strings.Join(weaknesses, ", ")))
	}

	return fmt.Sprintf("%s at $%.2f (P&L: %+.1f%%) scores %d/10. %s. %s",
		ticker, price, pnl, total, decision, strings.Join(parts, " "))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
