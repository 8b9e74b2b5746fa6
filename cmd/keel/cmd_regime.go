package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var regimeTimeout time.Duration

// regimeCmd classifies the current market regime without running the full
// pipeline. Useful as a quick pre-market check.
var regimeCmd = &cobra.Command{
	Use:   "regime",
	Short: "Classify the current market regime",
	RunE:  runRegime,
}

func init() {
	rootCmd.AddCommand(regimeCmd)

	regimeCmd.Flags().DurationVar(&regimeTimeout, "timeout", 5*time.Minute, "Fetch timeout")
}

func runRegime(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), regimeTimeout)
	defer cancel()

	tickers := []string{
		a.Config.Regime.BenchmarkTicker,
		a.Config.Regime.VolIndexTicker,
		a.Config.Regime.RateTicker,
	}
	snapshot, err := a.Market.FetchSnapshot(ctx, tickers, a.Now())
	if err != nil {
		return err
	}

	result := a.Regime.Classify(snapshot)

	fmt.Printf("Regime: %s (position multiplier %.1fx)\n\n", result.Classification, result.Multiplier)
	fmt.Println(result.Explanation)
	fmt.Println()

	keys := make([]string, 0, len(result.Signals))
	for k := range result.Signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-20s %s\n", k, result.Signals[k])
	}
	return nil
}
