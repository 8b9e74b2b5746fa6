// Package regime classifies the market environment as RISK_ON, NEUTRAL, or
// RISK_OFF from benchmark trend structure, volatility index level, and rate
// direction. The classification drives position sizing for the whole run.
package regime

import (
	"fmt"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/models"
	"github.com/bobmcallan/keel/internal/signals"
)

// rateSlopeWindow and rateRisingThreshold gate the "rising rates" bearish
// vote. Rates use a longer window than price trend to smooth auction noise.
const (
	rateSlopeWindow      = 30
	rateRisingThreshold  = 0.001
	missingBenchmarkVote = 2
)

// Service implements the market regime engine
type Service struct {
	cfg    common.RegimeConfig
	logger *common.Logger
}

// NewService creates a new regime service
func NewService(cfg common.RegimeConfig, logger *common.Logger) *Service {
	return &Service{cfg: cfg, logger: logger}
}

// Classify scores bullish and bearish signals from the macro series in the
// snapshot and returns the regime classification with its explanation.
func (s *Service) Classify(snapshot *models.MarketSnapshot) *models.RegimeResult {
	sigs := make(map[string]string)
	bullish, bearish := 0, 0

	var benchPrice, bench200, bench50 float64

	bench := snapshot.Series(s.cfg.BenchmarkTicker)
	if bench.Len() > 0 {
		closes := bench.Closes()
		benchPrice = closes[len(closes)-1]

		above200 := signals.IsAboveMA(closes, s.cfg.MALong)
		if above200 {
			sigs["benchmark_vs_200ma"] = "ABOVE"
			bullish++
		} else {
			sigs["benchmark_vs_200ma"] = "BELOW"
			bearish++
		}

		if signals.IsAboveMA(closes, s.cfg.MAShort) {
			sigs["benchmark_vs_50ma"] = "ABOVE"
		} else {
			sigs["benchmark_vs_50ma"] = "BELOW"
		}

		if signals.MARising(closes, s.cfg.MAShort, s.cfg.TrendWindow) {
			sigs["50ma_trend"] = "RISING"
			bullish++
		} else {
			sigs["50ma_trend"] = "FALLING"
			bearish++
		}

		hh := signals.HigherHighs(closes, s.cfg.TrendWindow, 2)
		lh := signals.LowerHighs(closes, s.cfg.TrendWindow, 2)
		switch {
		case hh:
			sigs["price_structure"] = "HIGHER_HIGHS"
			bullish++
		case lh:
			sigs["price_structure"] = "LOWER_HIGHS"
			bearish++
		default:
			sigs["price_structure"] = "MIXED"
		}

		trendSlope := signals.Slope(closes, s.cfg.TrendWindow)
		if trendSlope > 0 {
			sigs["20d_trend"] = fmt.Sprintf("UP (%+.4f)", trendSlope)
			bullish++
		} else {
			sigs["20d_trend"] = fmt.Sprintf("DOWN (%+.4f)", trendSlope)
			bearish++
		}

		bench200, _ = signals.SMA(closes, s.cfg.MALong)
		bench50, _ = signals.SMA(closes, s.cfg.MAShort)
	} else {
		sigs["benchmark_data"] = "MISSING"
		bearish += missingBenchmarkVote
		s.logger.Warn().Str("ticker", s.cfg.BenchmarkTicker).Msg("Benchmark data missing, defaulting bearish")
	}

	var volLevel float64
	if vol := snapshot.Series(s.cfg.VolIndexTicker); vol.Len() > 0 {
		closes := vol.Closes()
		volLevel = closes[len(closes)-1]
		elevated := volLevel > s.cfg.VolElevatedThreshold
		volTrend := signals.Slope(closes, s.cfg.TrendWindow)

		state := "NORMAL"
		if elevated {
			state = "ELEVATED"
		}
		sigs["vol_level"] = fmt.Sprintf("%.1f (%s)", volLevel, state)
		dir := "FALLING"
		if volTrend > 0 {
			dir = "RISING"
		}
		sigs["vol_trend"] = fmt.Sprintf("%s (%+.4f)", dir, volTrend)

		if elevated {
			bearish++
		} else {
			bullish++
		}
	} else {
		sigs["vol_data"] = "MISSING"
	}

	var rateYield float64
	if rate := snapshot.Series(s.cfg.RateTicker); rate.Len() > 0 {
		closes := rate.Closes()
		rateYield = closes[len(closes)-1]
		rateTrend := signals.Slope(closes, rateSlopeWindow)

		sigs["10y_yield"] = fmt.Sprintf("%.2f%%", rateYield)
		dir := "FALLING"
		if rateTrend > 0 {
			dir = "RISING"
		}
		sigs["10y_trend"] = fmt.Sprintf("%s (%+.4f)", dir, rateTrend)

		// Rising rates are a headwind for equities
		if rateTrend > rateRisingThreshold {
			bearish++
		}
	} else {
		sigs["rate_data"] = "MISSING"
	}

	var classification models.RegimeClass
	switch {
	case bullish >= 4 && bearish <= 1:
		classification = models.RegimeRiskOn
	case bearish >= 4:
		classification = models.RegimeRiskOff
	default:
		classification = models.RegimeNeutral
	}

	s.logger.Info().
		Str("classification", string(classification)).
		Int("bullish", bullish).
		Int("bearish", bearish).
		Float64("multiplier", classification.Multiplier()).
		Msg("Market regime classified")

	return &models.RegimeResult{
		Classification: classification,
		Multiplier:     classification.Multiplier(),
		Explanation:    buildExplanation(classification, benchPrice, bench200, volLevel),
		Signals:        sigs,
		BenchmarkPrice: benchPrice,
		Benchmark200MA: bench200,
		Benchmark50MA:  bench50,
		VolIndexLevel:  volLevel,
		RateYield:      rateYield,
	}
}

func buildExplanation(class models.RegimeClass, benchPrice, bench200, vol float64) string {
	switch class {
	case models.RegimeRiskOn:
		return fmt.Sprintf(
			"Market is in RISK-ON mode. The benchmark ($%.2f) is trading above its "+
				"200-day moving average ($%.2f), the 50-day MA is trending upward, "+
				"and price structure shows higher highs. Volatility index at %.1f indicates low fear. "+
				"Full position sizing is appropriate.",
			benchPrice, bench200, vol)
	case models.RegimeRiskOff:
		return fmt.Sprintf(
			"Market is in RISK-OFF mode. The benchmark ($%.2f) is showing weakness "+
				"relative to its 200-day moving average ($%.2f), with deteriorating "+
				"price structure. Volatility index at %.1f suggests elevated uncertainty. "+
				"Reduce exposure to 40%% of normal position sizes. Prioritize capital preservation.",
			benchPrice, bench200, vol)
	default:
		return fmt.Sprintf(
			"Market is in NEUTRAL mode with mixed signals. Benchmark at $%.2f "+
				"vs 200-day MA at $%.2f. Volatility index at %.1f. "+
				"Use 70%% of normal position sizing. Be selective with new entries.",
			benchPrice, bench200, vol)
	}
}
