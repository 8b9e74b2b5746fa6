// Package universe builds the scan universe from configured index sources.
package universe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/models"
)

// ConstituentsClient is the slice of the market data client this service
// needs.
type ConstituentsClient interface {
	GetIndexConstituents(ctx context.Context, index string) ([]string, error)
}

// Index codes per configured source name.
var sourceIndexes = map[string]string{
	"sp500":     "GSPC.INDX",
	"nasdaq100": "NDX.INDX",
}

// Service implements the universe builder
type Service struct {
	client ConstituentsClient
	cfg    common.UniverseConfig
	logger *common.Logger
}

// NewService creates a new universe service
func NewService(client ConstituentsClient, cfg common.UniverseConfig, logger *common.Logger) *Service {
	return &Service{client: client, cfg: cfg, logger: logger}
}

// Tickers returns the deduplicated, sorted scan universe from all configured
// sources. A source that fails to fetch is skipped with a warning; the run
// continues with whatever the remaining sources produced.
func (s *Service) Tickers(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)

	for _, source := range s.cfg.Sources {
		index, ok := sourceIndexes[source]
		if !ok {
			return nil, fmt.Errorf("unknown universe source %q", source)
		}

		tickers, err := s.client.GetIndexConstituents(ctx, index)
		if err != nil {
			s.logger.Warn().Str("source", source).Err(err).Msg("Failed to fetch index constituents")
			continue
		}
		s.logger.Info().Str("source", source).Int("tickers", len(tickers)).Msg("Constituents fetched")

		for _, t := range tickers {
			if norm := normalizeTicker(t); norm != "" {
				seen[norm] = true
			}
		}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)

	s.logger.Info().Int("universe", len(out)).Msg("Universe built")
	return out, nil
}

// PreFilter drops universe tickers whose latest price is outside the
// configured band or whose average volume is too thin. Holdings and macro
// tickers are the caller's responsibility and are never passed here.
func (s *Service) PreFilter(universe []string, snapshot *models.MarketSnapshot, volumeLookback int) []string {
	out := make([]string, 0, len(universe))
	for _, ticker := range universe {
		series := snapshot.Series(ticker)
		price, ok := series.LastClose()
		if !ok {
			continue
		}
		if price < s.cfg.MinPrice || price > s.cfg.MaxPrice {
			continue
		}
		if avgVolume(series, volumeLookback) < s.cfg.MinAvgVolume {
			continue
		}
		out = append(out, ticker)
	}

	s.logger.Info().
		Int("before", len(universe)).
		Int("after", len(out)).
		Msg("Universe pre-filter applied")
	return out
}

func avgVolume(series *models.DailySeries, lookback int) float64 {
	if series.Len() == 0 || lookback <= 0 {
		return 0
	}
	bars := series.Bars
	if len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}
	var sum float64
	for _, b := range bars {
		sum += float64(b.Volume)
	}
	return sum / float64(len(bars))
}

// normalizeTicker maps share-class dots to the dash form the data provider
// expects (BRK.B -> BRK-B).
func normalizeTicker(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	return strings.ReplaceAll(t, ".", "-")
}
