// Package app wires clients, services, and storage into the daily decision
// pipeline. It is the shared core used by cmd/keel.
package app

import (
	"time"

	"github.com/bobmcallan/keel/internal/clients/marketdata"
	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/interfaces"
	"github.com/bobmcallan/keel/internal/services/allocator"
	"github.com/bobmcallan/keel/internal/services/health"
	"github.com/bobmcallan/keel/internal/services/market"
	"github.com/bobmcallan/keel/internal/services/regime"
	"github.com/bobmcallan/keel/internal/services/report"
	"github.com/bobmcallan/keel/internal/services/scanner"
	"github.com/bobmcallan/keel/internal/services/universe"
	"github.com/bobmcallan/keel/internal/storage/runstore"
)

// App holds all initialized services and clients.
type App struct {
	Config *common.Config
	Logger *common.Logger

	MarketClient interfaces.MarketDataClient
	Market       *market.Service
	Universe     *universe.Service
	Regime       *regime.Service
	Health       *health.Service
	Scanner      *scanner.Service
	Allocator    *allocator.Service
	Report       *report.Service
	Runs         interfaces.RunStore

	// Now is the run clock; swappable for tests.
	Now func() time.Time
}

// NewApp initializes all services from config.
func NewApp(cfg *common.Config, logger *common.Logger) (*App, error) {
	client := marketdata.NewClient(
		cfg.Clients.MarketData.APIKey,
		marketdata.WithBaseURL(cfg.Clients.MarketData.BaseURL),
		marketdata.WithRateLimit(cfg.Clients.MarketData.RateLimit),
		marketdata.WithTimeout(cfg.Clients.MarketData.GetTimeout()),
		marketdata.WithLogger(logger),
	)

	runs, err := runstore.NewStore(logger, cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	benchmark := cfg.Regime.BenchmarkTicker

	return &App{
		Config:       cfg,
		Logger:       logger,
		MarketClient: client,
		Market:       market.NewService(client, cfg.Data, cfg.Universe.BatchSize, logger),
		Universe:     universe.NewService(client, cfg.Universe, logger),
		Regime:       regime.NewService(cfg.Regime, logger),
		Health:       health.NewService(cfg.Health, cfg.Portfolio, benchmark, logger),
		Scanner:      scanner.NewService(cfg.Scanner, cfg.Portfolio, cfg.Health, benchmark, logger),
		Allocator:    allocator.NewService(cfg.Portfolio, logger),
		Report:       report.NewService(cfg.Email, logger),
		Runs:         runs,
		Now:          time.Now,
	}, nil
}

// Close releases resources held by the app.
func (a *App) Close() error {
	if a.Runs != nil {
		return a.Runs.Close()
	}
	return nil
}
