// Package market assembles the immutable market snapshot a pipeline run
// consumes: daily bars and fundamentals for every ticker, fetched in batches
// with retries, validated against a minimum coverage threshold.
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/interfaces"
	"github.com/bobmcallan/keel/internal/models"
)

// CoverageError is returned when too few tickers produced usable data for
// the run's output to be trusted. Callers must treat it as fatal for the run.
type CoverageError struct {
	CoveragePct  float64
	ThresholdPct float64
	Fetched      int
	Requested    int
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("data coverage %.1f%% (%d/%d) is below the %.1f%% threshold; aborting to prevent unreliable output",
		e.CoveragePct, e.Fetched, e.Requested, e.ThresholdPct)
}

// Service implements snapshot assembly
type Service struct {
	client    interfaces.MarketDataClient
	data      common.DataConfig
	batchSize int
	logger    *common.Logger

	// sleep is swappable for tests
	sleep func(time.Duration)
}

// NewService creates a new market data service
func NewService(client interfaces.MarketDataClient, data common.DataConfig, batchSize int, logger *common.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Service{
		client:    client,
		data:      data,
		batchSize: batchSize,
		logger:    logger,
		sleep:     time.Sleep,
	}
}

// FetchSnapshot fetches daily bars for every ticker plus fundamentals for
// those with usable history, then enforces the coverage gate. asOf bounds
// the bar range; lookback days are calendar days.
func (s *Service) FetchSnapshot(ctx context.Context, tickers []string, asOf time.Time) (*models.MarketSnapshot, error) {
	snapshot := &models.MarketSnapshot{
		Daily:        make(map[string]*models.DailySeries),
		Fundamentals: make(map[string]*models.Fundamentals),
	}
	if len(tickers) == 0 {
		return snapshot, nil
	}

	from := asOf.AddDate(0, 0, -s.data.DailyLookbackDays)
	totalBatches := (len(tickers) + s.batchSize - 1) / s.batchSize

	for i := 0; i < len(tickers); i += s.batchSize {
		end := i + s.batchSize
		if end > len(tickers) {
			end = len(tickers)
		}
		batch := tickers[i:end]
		batchNum := i/s.batchSize + 1

		s.logger.Info().
			Int("batch", batchNum).
			Int("total_batches", totalBatches).
			Int("tickers", len(batch)).
			Msg("Fetching daily batch")

		for _, ticker := range batch {
			series, err := s.fetchDailyWithRetry(ctx, ticker, from, asOf)
			if err != nil {
				s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Daily fetch failed after retries")
				continue
			}
			if series != nil {
				snapshot.Daily[ticker] = series
			}
		}
	}

	s.logger.Info().
		Int("fetched", len(snapshot.Daily)).
		Int("requested", len(tickers)).
		Msg("Daily download complete")

	for ticker := range snapshot.Daily {
		fund, err := s.fetchFundamentalsWithRetry(ctx, ticker)
		if err != nil {
			s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Fundamentals unavailable")
			continue
		}
		snapshot.Fundamentals[ticker] = fund
	}

	coverage := float64(len(snapshot.Daily)) / float64(len(tickers)) * 100
	snapshot.CoveragePct = coverage
	s.logger.Info().
		Float64("coverage_pct", coverage).
		Int("fetched", len(snapshot.Daily)).
		Int("requested", len(tickers)).
		Msg("Data coverage")

	if coverage < s.data.MinCoveragePct {
		return nil, &CoverageError{
			CoveragePct:  coverage,
			ThresholdPct: s.data.MinCoveragePct,
			Fetched:      len(snapshot.Daily),
			Requested:    len(tickers),
		}
	}

	return snapshot, nil
}

func (s *Service) fetchDailyWithRetry(ctx context.Context, ticker string, from, to time.Time) (*models.DailySeries, error) {
	var lastErr error
	for attempt := 1; attempt <= s.data.MaxRetries; attempt++ {
		series, err := s.client.GetDailyBars(ctx, ticker, from, to)
		if err == nil {
			return series, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < s.data.MaxRetries {
			s.sleep(s.data.RetryDelay())
		}
	}
	return nil, lastErr
}

func (s *Service) fetchFundamentalsWithRetry(ctx context.Context, ticker string) (*models.Fundamentals, error) {
	var lastErr error
	for attempt := 1; attempt <= s.data.MaxRetries; attempt++ {
		fund, err := s.client.GetFundamentals(ctx, ticker)
		if err == nil {
			return fund, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < s.data.MaxRetries {
			s.sleep(s.data.RetryDelay())
		}
	}
	return nil, lastErr
}
