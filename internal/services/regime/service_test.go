package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/models"
)

func testConfig() common.RegimeConfig {
	return common.RegimeConfig{
		BenchmarkTicker:      "SPY",
		VolIndexTicker:       "^VIX",
		RateTicker:           "^TNX",
		LookbackDays:         250,
		MALong:               200,
		MAShort:              50,
		TrendWindow:          20,
		VolElevatedThreshold: 25,
	}
}

func newTestService() *Service {
	return NewService(testConfig(), common.NewSilentLogger())
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

func snapshotWith(bench, vol, rate *models.DailySeries) *models.MarketSnapshot {
	daily := make(map[string]*models.DailySeries)
	if bench != nil {
		daily["SPY"] = bench
	}
	if vol != nil {
		daily["^VIX"] = vol
	}
	if rate != nil {
		daily["^TNX"] = rate
	}
	return &models.MarketSnapshot{Daily: daily, Fundamentals: map[string]*models.Fundamentals{}}
}

func TestClassify_RiskOn(t *testing.T) {
	// Rising benchmark, calm vol, flat rates: four bullish votes, none bearish
	snapshot := snapshotWith(
		seriesOf("SPY", linear(100, 0.5, 250)),
		seriesOf("^VIX", constant(15, 60)),
		seriesOf("^TNX", constant(4.2, 60)),
	)

	got := newTestService().Classify(snapshot)

	assert.Equal(t, models.RegimeRiskOn, got.Classification)
	assert.Equal(t, 1.0, got.Multiplier)
	assert.Equal(t, "ABOVE", got.Signals["benchmark_vs_200ma"])
	assert.Equal(t, "RISING", got.Signals["50ma_trend"])
	assert.Contains(t, got.Signals["vol_level"], "NORMAL")
	assert.Contains(t, got.Explanation, "RISK-ON")
	assert.Greater(t, got.BenchmarkPrice, got.Benchmark200MA)
	assert.InDelta(t, 15.0, got.VolIndexLevel, 1e-9)
}

func TestClassify_RiskOff(t *testing.T) {
	// Falling benchmark and elevated vol: four bearish votes
	snapshot := snapshotWith(
		seriesOf("SPY", linear(300, -0.5, 250)),
		seriesOf("^VIX", constant(32, 60)),
		seriesOf("^TNX", constant(4.2, 60)),
	)

	got := newTestService().Classify(snapshot)

	assert.Equal(t, models.RegimeRiskOff, got.Classification)
	assert.Equal(t, 0.4, got.Multiplier)
	assert.Equal(t, "BELOW", got.Signals["benchmark_vs_200ma"])
	assert.Equal(t, "FALLING", got.Signals["50ma_trend"])
	assert.Contains(t, got.Signals["vol_level"], "ELEVATED")
	assert.Contains(t, got.Explanation, "RISK-OFF")
}

func TestClassify_Neutral(t *testing.T) {
	// Rising benchmark but elevated vol: three bullish, one bearish
	snapshot := snapshotWith(
		seriesOf("SPY", linear(100, 0.5, 250)),
		seriesOf("^VIX", constant(32, 60)),
		seriesOf("^TNX", constant(4.2, 60)),
	)

	got := newTestService().Classify(snapshot)

	assert.Equal(t, models.RegimeNeutral, got.Classification)
	assert.Equal(t, 0.7, got.Multiplier)
	assert.Contains(t, got.Explanation, "NEUTRAL")
}

func TestClassify_RisingRatesTipRiskOff(t *testing.T) {
	// Falling benchmark with calm vol sits at three bearish votes. Steadily
	// rising rates add the fourth.
	bench := seriesOf("SPY", linear(300, -0.5, 250))
	vol := seriesOf("^VIX", constant(15, 60))

	flat := newTestService().Classify(snapshotWith(bench, vol, seriesOf("^TNX", constant(4.0, 60))))
	require.Equal(t, models.RegimeNeutral, flat.Classification)

	rising := newTestService().Classify(snapshotWith(bench, vol, seriesOf("^TNX", linear(4.0, 0.02, 60))))
	assert.Equal(t, models.RegimeRiskOff, rising.Classification)
	assert.Contains(t, rising.Signals["10y_trend"], "RISING")
}

func TestClassify_MissingBenchmark(t *testing.T) {
	snapshot := snapshotWith(
		nil,
		seriesOf("^VIX", constant(15, 60)),
		seriesOf("^TNX", constant(4.2, 60)),
	)

	got := newTestService().Classify(snapshot)

	assert.Equal(t, "MISSING", got.Signals["benchmark_data"])
	// Two bearish votes from missing data, one bullish from calm vol
	assert.Equal(t, models.RegimeNeutral, got.Classification)
	assert.Equal(t, 0.0, got.BenchmarkPrice)
}

func TestClassify_MissingVolAndRates(t *testing.T) {
	snapshot := snapshotWith(seriesOf("SPY", linear(100, 0.5, 250)), nil, nil)

	got := newTestService().Classify(snapshot)

	assert.Equal(t, "MISSING", got.Signals["vol_data"])
	assert.Equal(t, "MISSING", got.Signals["rate_data"])
	// Only three bullish votes without the vol signal
	assert.Equal(t, models.RegimeNeutral, got.Classification)
}
