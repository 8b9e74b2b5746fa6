package app

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/bobmcallan/keel/internal/models"
	"github.com/bobmcallan/keel/internal/services/report"
)

// RunOptions controls a single pipeline run.
type RunOptions struct {
	// SendEmail delivers the report when email is configured.
	SendEmail bool
}

// Run executes the full daily pipeline: build the universe, fetch one market
// snapshot, run the four decision engines over it, persist the run record,
// and optionally send the report. The snapshot is fetched exactly once; the
// engines are pure functions of it, so re-running over the same snapshot
// yields the same report.
func (a *App) Run(ctx context.Context, opts RunOptions) (*models.DecisionReport, error) {
	asOf := a.Now()

	a.Logger.Info().Msg("STEP 1: Building universe")
	universeTickers, err := a.Universe.Tickers(ctx)
	if err != nil {
		return nil, err
	}

	// Holdings and macro tickers ride along with the scan universe
	all := make(map[string]bool, len(universeTickers)+len(a.Config.Portfolio.Holdings)+3)
	for _, t := range universeTickers {
		all[t] = true
	}
	for _, h := range a.Config.Portfolio.Holdings {
		all[h.Ticker] = true
	}
	all[a.Config.Regime.BenchmarkTicker] = true
	all[a.Config.Regime.VolIndexTicker] = true
	all[a.Config.Regime.RateTicker] = true

	tickers := make([]string, 0, len(all))
	for t := range all {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	a.Logger.Info().Int("tickers", len(tickers)).Msg("STEP 2: Fetching market snapshot")
	snapshot, err := a.Market.FetchSnapshot(ctx, tickers, asOf)
	if err != nil {
		return nil, err
	}

	// Thin or mispriced universe tickers drop out before scanning; holdings
	// and macro series always stay in the snapshot.
	kept := a.Universe.PreFilter(universeTickers, snapshot, a.Config.Scanner.VolumeLookback)
	keptSet := make(map[string]bool, len(kept))
	for _, t := range kept {
		keptSet[t] = true
	}
	for _, h := range a.Config.Portfolio.Holdings {
		keptSet[h.Ticker] = true
	}
	keptSet[a.Config.Regime.BenchmarkTicker] = true
	keptSet[a.Config.Regime.VolIndexTicker] = true
	keptSet[a.Config.Regime.RateTicker] = true
	for t := range snapshot.Daily {
		if !keptSet[t] {
			delete(snapshot.Daily, t)
			delete(snapshot.Fundamentals, t)
		}
	}

	a.Logger.Info().Msg("STEP 3: Market regime engine")
	regimeResult := a.Regime.Classify(snapshot)

	a.Logger.Info().Msg("STEP 4: Portfolio health engine")
	healthResult := a.Health.Score(snapshot, regimeResult)

	a.Logger.Info().Msg("STEP 5: Opportunity scanner")
	screenResult := a.Scanner.Scan(snapshot, regimeResult, asOf)

	a.Logger.Info().Msg("STEP 6: Capital allocation engine")
	allocation := a.Allocator.Allocate(regimeResult, healthResult, screenResult)

	decisionReport := &models.DecisionReport{
		GeneratedAt:      asOf,
		Regime:           regimeResult,
		Health:           healthResult,
		Screen:           screenResult,
		Allocation:       allocation,
		ExternalHoldings: a.Config.ExternalHoldings,
		CoveragePct:      snapshot.CoveragePct,
		UniverseSize:     len(kept),
	}

	if err := a.saveRun(ctx, decisionReport); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to persist run record")
	}

	if opts.SendEmail {
		var chartPNG []byte
		if bench := snapshot.Series(a.Config.Regime.BenchmarkTicker); bench != nil {
			png, err := report.RenderBenchmarkChart(bench, a.Config.Regime.MALong)
			if err != nil {
				a.Logger.Warn().Err(err).Msg("Benchmark chart unavailable")
			} else {
				chartPNG = png
			}
		}
		if _, err := a.Report.Send(decisionReport, chartPNG); err != nil {
			a.Logger.Error().Err(err).Msg("Report delivery failed")
		}
	}

	a.Logger.Info().Msg("Pipeline complete")
	return decisionReport, nil
}

// saveRun stores a summary record plus the full report payload.
func (a *App) saveRun(ctx context.Context, r *models.DecisionReport) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}

	record := &models.RunRecord{
		ID:             uuid.NewString(),
		GeneratedAt:    r.GeneratedAt,
		Regime:         r.Regime.Classification,
		Multiplier:     r.Regime.Multiplier,
		CoveragePct:    r.CoveragePct,
		HoldingCount:   len(r.Health.Holdings),
		CandidateCount: len(r.Screen.Candidates),
		BuyPlanCount:   len(r.Allocation.BuyPlans),
		TrimExitCount:  len(r.Allocation.TrimExitPlans),
		ReportJSON:     string(payload),
	}
	return a.Runs.SaveRun(ctx, record)
}
