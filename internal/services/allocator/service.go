// Package allocator enforces risk-based position sizing, position count
// limits, the minimum cash reserve, and regime-aware deployment rules.
package allocator

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/models"
)

const (
	trimFraction           = 0.25
	riskOffScoreGate       = 90.0
	sectorConcentrationPct = 30.0
)

// Service implements the capital allocation engine
type Service struct {
	portfolio common.PortfolioConfig
	logger    *common.Logger
}

// NewService creates a new allocator service
func NewService(portfolio common.PortfolioConfig, logger *common.Logger) *Service {
	return &Service{portfolio: portfolio, logger: logger}
}

// Allocate turns regime, health, and screen results into an executable plan.
// Capital freed by trims and exits is counted toward deployable cash before
// buys are sized, and no buy may dip into the minimum cash reserve.
func (s *Service) Allocate(regime *models.RegimeResult, health *models.HealthResult, screen *models.ScreenResult) *models.AllocationResult {
	portfolioValue := s.portfolio.TotalValue
	maxPositions := s.portfolio.MaxPositions
	minCashPct := s.portfolio.MinCashPct
	maxRiskPct := s.portfolio.MaxRiskPerTradePct

	invested := health.TotalCurrentValue
	cash := portfolioValue - invested
	cashPct := 100.0
	if portfolioValue > 0 {
		cashPct = cash / portfolioValue * 100
	}
	exposurePct := 100 - cashPct

	currentPositions := 0
	for _, h := range health.Holdings {
		if h.CurrentPrice > 0 {
			currentPositions++
		}
	}

	sectorConcentration := sectorBreakdown(health.Holdings, portfolioValue)

	// Trim and exit plans free capital for redeployment
	var trimExit []models.AllocationPlan
	freed := 0.0

	for _, h := range health.Holdings {
		switch h.Decision {
		case models.DecisionExit:
			freed += h.PositionValue
			trimExit = append(trimExit, models.AllocationPlan{
				Ticker:     h.Ticker,
				Action:     models.ActionExit,
				Shares:     int(h.Shares),
				EntryPrice: h.CurrentPrice,
				Rationale:  h.Explanation,
			})
		case models.DecisionTrim25:
			trimShares := int(h.Shares * trimFraction)
			if trimShares < 1 {
				trimShares = 1
			}
			freed += float64(trimShares) * h.CurrentPrice
			trimExit = append(trimExit, models.AllocationPlan{
				Ticker:       h.Ticker,
				Action:       models.ActionTrim,
				Shares:       trimShares,
				EntryPrice:   h.CurrentPrice,
				StopPrice:    h.SuggestedStop,
				RiskPerShare: h.RiskPerShare,
				Rationale:    h.Explanation,
			})
		}
	}

	availableCash := cash + freed
	minReserve := portfolioValue * (minCashPct / 100)
	deployable := math.Max(0, availableCash-minReserve)

	exits := 0
	for _, p := range trimExit {
		if p.Action == models.ActionExit {
			exits++
		}
	}
	openSlots := maxPositions - currentPositions + exits
	if openSlots < 0 {
		openSlots = 0
	}

	var riskNotes []string
	if regime.Classification == models.RegimeRiskOff {
		riskNotes = append(riskNotes,
			fmt.Sprintf("RISK_OFF regime: No new positions unless candidate score >= %.0f/100.", riskOffScoreGate))
	}

	var buys []models.AllocationPlan
	for _, c := range screen.Candidates {
		if len(buys) >= openSlots || deployable <= 0 {
			break
		}
		if regime.Classification == models.RegimeRiskOff && c.CompositeScore < riskOffScoreGate {
			continue
		}
		if c.RiskPerShare <= 0 {
			continue
		}

		maxRiskDollars := portfolioValue * (maxRiskPct / 100) * regime.Multiplier
		shares := int(maxRiskDollars / c.RiskPerShare)
		if shares <= 0 {
			continue
		}

		capitalNeeded := float64(shares) * c.CurrentPrice
		if capitalNeeded > deployable {
			shares = int(deployable / c.CurrentPrice)
			capitalNeeded = float64(shares) * c.CurrentPrice
		}
		if shares <= 0 {
			continue
		}

		actualRisk := float64(shares) * c.RiskPerShare
		buys = append(buys, models.AllocationPlan{
			Ticker:             c.Ticker,
			Action:             models.ActionBuy,
			Shares:             shares,
			EntryPrice:         c.CurrentPrice,
			StopPrice:          c.SuggestedStop,
			RiskPerShare:       round2(c.RiskPerShare),
			CapitalRequired:    round2(capitalNeeded),
			RiskAmount:         round2(actualRisk),
			RiskPctOfPortfolio: round2(actualRisk / portfolioValue * 100),
			Rationale: fmt.Sprintf("Score %.2f/100. %s. RSI %.1f. Entry zone $%.2f-$%.2f.",
				c.CompositeScore, c.Sector, c.RSI, c.EntryZoneLow, c.EntryZoneHigh),
		})
		deployable -= capitalNeeded
	}

	if cashPct < minCashPct {
		riskNotes = append(riskNotes, fmt.Sprintf(
			"Cash (%.1f%%) is below the %.0f%% minimum. Prioritize trimming weak positions before adding new ones.",
			cashPct, minCashPct))
	}
	for _, sc := range sortedSectors(sectorConcentration) {
		if sectorConcentration[sc] > sectorConcentrationPct {
			riskNotes = append(riskNotes, fmt.Sprintf(
				"Sector concentration alert: %s at %.1f%% of portfolio. Consider diversifying.",
				sc, sectorConcentration[sc]))
		}
	}
	if len(riskNotes) == 0 {
		riskNotes = append(riskNotes, "No elevated risks detected. Portfolio is within guidelines.")
	}

	weeklyPlan := buildWeeklyPlan(regime, buys)

	s.logger.Info().
		Int("buys", len(buys)).
		Int("trims_exits", len(trimExit)).
		Float64("cash_pct", round1(cashPct)).
		Float64("remaining_deployable", round2(deployable)).
		Msg("Allocation computed")

	return &models.AllocationResult{
		TotalPortfolioValue:  round2(portfolioValue),
		InvestedValue:        round2(invested),
		CashValue:            round2(cash),
		CashPct:              round1(cashPct),
		TotalExposurePct:     round1(exposurePct),
		PositionCount:        currentPositions,
		MaxPositions:         maxPositions,
		SectorConcentration:  sectorConcentration,
		TrimExitPlans:        trimExit,
		BuyPlans:             buys,
		RemainingDeployable:  round2(deployable),
		WeeklyDeploymentPlan: weeklyPlan,
		RiskNotes:            riskNotes,
	}
}

// sectorBreakdown maps each sector to its percentage of total portfolio
// value, using the sector recorded during health scoring.
func sectorBreakdown(holdings []models.HoldingHealth, portfolioValue float64) map[string]float64 {
	if portfolioValue <= 0 {
		return map[string]float64{}
	}
	values := make(map[string]float64)
	for _, h := range holdings {
		sector := h.MacroDetails["sector"]
		if sector == "" {
			sector = "Unknown"
		}
		values[sector] += h.PositionValue
	}
	out := make(map[string]float64, len(values))
	for sector, v := range values {
		out[sector] = round1(v / portfolioValue * 100)
	}
	return out
}

// sortedSectors returns sector names ordered by concentration descending,
// ties broken alphabetically.
func sortedSectors(concentration map[string]float64) []string {
	sectors := make([]string, 0, len(concentration))
	for sc := range concentration {
		sectors = append(sectors, sc)
	}
	sort.Slice(sectors, func(i, j int) bool {
		if concentration[sectors[i]] != concentration[sectors[j]] {
			return concentration[sectors[i]] > concentration[sectors[j]]
		}
		return sectors[i] < sectors[j]
	})
	return sectors
}

func buildWeeklyPlan(regime *models.RegimeResult, buys []models.AllocationPlan) string {
	if regime.Classification == models.RegimeRiskOff {
		return "RISK_OFF: Preserve capital. Do not initiate new positions unless an exceptional " +
			"opportunity (score >= 90) appears. Focus on trimming underperformers and raising cash."
	}

	if len(buys) == 0 {
		return "No new opportunities meet all criteria this week. " +
			"Maintain current positions and monitor for setups."
	}

	totalBuy := 0.0
	tickers := make([]string, 0, len(buys))
	for _, p := range buys {
		totalBuy += p.CapitalRequired
		tickers = append(tickers, p.Ticker)
	}
	list := strings.Join(tickers, ", ")

	if regime.Classification == models.RegimeRiskOn {
		return fmt.Sprintf(
			"RISK_ON: Deploy up to $%.0f across %d new position(s): %s. Consider scaling in "+
				"over 2-3 days rather than entering all at once. Use limit orders at the entry zone.",
			totalBuy, len(buys), list)
	}
	return fmt.Sprintf(
		"NEUTRAL: Selectively deploy up to $%.0f across %d position(s): %s. Use 70%% of normal "+
			"size. Scale in gradually over the week. Maintain higher cash reserves.",
		totalBuy, len(buys), list)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
