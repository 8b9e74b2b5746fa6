package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/keel/internal/app"
	"github.com/bobmcallan/keel/internal/models"
	"github.com/bobmcallan/keel/internal/services/market"
)

var (
	reportNoEmail bool
	reportOutput  string
	reportTimeout time.Duration
)

// reportCmd runs the full daily pipeline.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run the daily pipeline and produce the decision report",
	Long: `Run the full daily pipeline: build the scan universe, fetch market data,
classify the regime, score holdings, screen candidates, and allocate capital.

The report is emailed when email is configured (disable with --no-email) and
always persisted to the local run store. Use --output to also write the full
report as JSON.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().BoolVar(&reportNoEmail, "no-email", false, "Skip email delivery")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Write full report JSON to file ('-' for stdout)")
	reportCmd.Flags().DurationVar(&reportTimeout, "timeout", 30*time.Minute, "Overall pipeline timeout")
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	result, err := a.Run(ctx, app.RunOptions{SendEmail: !reportNoEmail})
	if err != nil {
		var covErr *market.CoverageError
		if errors.As(err, &covErr) {
			return fmt.Errorf("aborting: %w", covErr)
		}
		return err
	}

	printSummary(result)

	if reportOutput != "" {
		if err := writeReportJSON(result, reportOutput); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

func printSummary(r *models.DecisionReport) {
	fmt.Printf("Regime: %s (position multiplier %.1fx)\n", r.Regime.Classification, r.Regime.Multiplier)
	fmt.Printf("Holdings scored: %d\n", len(r.Health.Holdings))
	fmt.Printf("Candidates: %d of %d scanned\n", len(r.Screen.Candidates), r.Screen.UniverseScanned)
	fmt.Printf("Buy plans: %d, trims/exits: %d\n", len(r.Allocation.BuyPlans), len(r.Allocation.TrimExitPlans))
	fmt.Printf("Deployable after buys: $%.2f\n", r.Allocation.RemainingDeployable)
}

func writeReportJSON(r *models.DecisionReport, path string) error {
	out := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
