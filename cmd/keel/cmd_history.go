package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyShow  string
)

// historyCmd lists stored pipeline runs, most recent first.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored pipeline runs",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to list")
	historyCmd.Flags().StringVar(&historyShow, "show", "", "Print the full report JSON for a run ID")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	if historyShow != "" {
		record, err := a.Runs.GetRun(ctx, historyShow)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("run %s not found", historyShow)
		}
		fmt.Println(record.ReportJSON)
		return nil
	}

	records, err := a.Runs.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Generated\tRegime\tCoverage\tHoldings\tCandidates\tBuys\tTrims/Exits\tID")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%d\t%d\t%d\t%d\t%s\n",
			r.GeneratedAt.Format("2006-01-02 15:04"),
			r.Regime,
			r.CoveragePct,
			r.HoldingCount,
			r.CandidateCount,
			r.BuyPlanCount,
			r.TrimExitCount,
			r.ID,
		)
	}
	return w.Flush()
}
