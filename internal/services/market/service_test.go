package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/models"
)

// mockClient scripts per-ticker daily responses and counts attempts.
type mockClient struct {
	series      map[string]*models.DailySeries
	failDaily   map[string]int // remaining failures before success
	dailyCalls  map[string]int
	fundamental map[string]*models.Fundamentals
}

func newMockClient() *mockClient {
	return &mockClient{
		series:      make(map[string]*models.DailySeries),
		failDaily:   make(map[string]int),
		dailyCalls:  make(map[string]int),
		fundamental: make(map[string]*models.Fundamentals),
	}
}

func (m *mockClient) GetDailyBars(ctx context.Context, ticker string, from, to time.Time) (*models.DailySeries, error) {
	m.dailyCalls[ticker]++
	if m.failDaily[ticker] > 0 {
		m.failDaily[ticker]--
		return nil, errors.New("transient upstream error")
	}
	return m.series[ticker], nil
}

func (m *mockClient) GetFundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error) {
	if fund, ok := m.fundamental[ticker]; ok {
		return fund, nil
	}
	return nil, errors.New("no fundamentals")
}

func seriesOf(ticker string, n int) *models.DailySeries {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = models.Bar{Date: start.AddDate(0, 0, i), Close: 100, High: 101, Low: 99, Volume: 1000000}
	}
	return &models.DailySeries{Ticker: ticker, Bars: bars}
}

func newTestService(client *mockClient) (*Service, *int) {
	data := common.DataConfig{
		MinCoveragePct:    80,
		MaxRetries:        3,
		RetryDelaySeconds: 5,
		DailyLookbackDays: 300,
	}
	svc := NewService(client, data, 50, common.NewSilentLogger())
	sleeps := 0
	svc.sleep = func(time.Duration) { sleeps++ }
	return svc, &sleeps
}

func TestFetchSnapshot_AssemblesSnapshot(t *testing.T) {
	client := newMockClient()
	client.series["AAPL"] = seriesOf("AAPL", 250)
	client.series["MSFT"] = seriesOf("MSFT", 250)
	client.fundamental["AAPL"] = &models.Fundamentals{Ticker: "AAPL", Sector: "Technology"}

	svc, _ := newTestService(client)
	asOf := time.Date(2025, 11, 14, 0, 0, 0, 0, time.UTC)

	got, err := svc.FetchSnapshot(context.Background(), []string{"AAPL", "MSFT"}, asOf)
	require.NoError(t, err)

	assert.Len(t, got.Daily, 2)
	assert.InDelta(t, 100.0, got.CoveragePct, 1e-9)
	require.NotNil(t, got.Fundamental("AAPL"))
	assert.Equal(t, "Technology", got.Fundamental("AAPL").Sector)
	// MSFT fundamentals failed: the series stays, fundamentals are absent
	assert.Nil(t, got.Fundamental("MSFT"))
}

func TestFetchSnapshot_CoverageGate(t *testing.T) {
	client := newMockClient()
	client.series["AAPL"] = seriesOf("AAPL", 250)
	// MSFT returns no usable series at all
	client.failDaily["MSFT"] = 99

	svc, _ := newTestService(client)

	_, err := svc.FetchSnapshot(context.Background(), []string{"AAPL", "MSFT"}, time.Now())
	require.Error(t, err)

	var covErr *CoverageError
	require.ErrorAs(t, err, &covErr)
	assert.InDelta(t, 50.0, covErr.CoveragePct, 1e-9)
	assert.InDelta(t, 80.0, covErr.ThresholdPct, 1e-9)
	assert.Equal(t, 1, covErr.Fetched)
	assert.Equal(t, 2, covErr.Requested)
	assert.Contains(t, covErr.Error(), "below the 80.0% threshold")
}

func TestFetchSnapshot_RetriesTransientFailures(t *testing.T) {
	client := newMockClient()
	client.series["AAPL"] = seriesOf("AAPL", 250)
	client.failDaily["AAPL"] = 2 // fails twice, succeeds on the third attempt

	svc, sleeps := newTestService(client)

	got, err := svc.FetchSnapshot(context.Background(), []string{"AAPL"}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 3, client.dailyCalls["AAPL"])
	assert.Equal(t, 2, *sleeps)
	assert.NotNil(t, got.Series("AAPL"))
}

func TestFetchSnapshot_ExhaustedRetriesDropTicker(t *testing.T) {
	client := newMockClient()
	client.series["AAPL"] = seriesOf("AAPL", 250)
	client.series["DOWN"] = seriesOf("DOWN", 250)
	client.failDaily["DOWN"] = 99

	// Coverage threshold low enough that the run survives the drop
	data := common.DataConfig{MinCoveragePct: 40, MaxRetries: 3, RetryDelaySeconds: 0, DailyLookbackDays: 300}
	svc := NewService(client, data, 50, common.NewSilentLogger())
	svc.sleep = func(time.Duration) {}

	got, err := svc.FetchSnapshot(context.Background(), []string{"AAPL", "DOWN"}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 3, client.dailyCalls["DOWN"])
	assert.Nil(t, got.Series("DOWN"))
	assert.InDelta(t, 50.0, got.CoveragePct, 1e-9)
}

func TestFetchSnapshot_EmptyTickerList(t *testing.T) {
	svc, _ := newTestService(newMockClient())

	got, err := svc.FetchSnapshot(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, got.Daily)
}

func TestFetchSnapshot_ShortSeriesDiscardedByClient(t *testing.T) {
	client := newMockClient()
	client.series["AAPL"] = seriesOf("AAPL", 250)
	client.series["NEWIPO"] = nil // client returns (nil, nil) for thin history

	data := common.DataConfig{MinCoveragePct: 40, MaxRetries: 3, RetryDelaySeconds: 0, DailyLookbackDays: 300}
	svc := NewService(client, data, 50, common.NewSilentLogger())

	got, err := svc.FetchSnapshot(context.Background(), []string{"AAPL", "NEWIPO"}, time.Now())
	require.NoError(t, err)

	assert.Len(t, got.Daily, 1)
	assert.Nil(t, got.Series("NEWIPO"))
}
