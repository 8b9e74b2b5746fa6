// Package interfaces defines contracts between Keel components
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/keel/internal/models"
)

// MarketDataClient fetches daily bars and fundamentals from an external
// provider. Implementations must return bars in ascending date order and may
// return (nil, nil) for tickers whose history is too short to analyze.
type MarketDataClient interface {
	GetDailyBars(ctx context.Context, ticker string, from, to time.Time) (*models.DailySeries, error)
	GetFundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error)
}

// UniverseSource returns the tickers to scan, deduplicated and sorted.
type UniverseSource interface {
	Tickers(ctx context.Context) ([]string, error)
}
