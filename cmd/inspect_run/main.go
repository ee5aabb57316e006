package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/momentum_backtest/internal/infrastructure/storage"
)

const dateLayout = "2006-01-02"

func main() {
	dbPath := flag.String("db", "backtest.db", "path to the run database")
	runID := flag.String("run", "", "run to print; lists recent runs when empty")
	flag.Parse()

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if *runID == "" {
		runs, err := store.ListRuns(ctx, 20)
		if err != nil {
			fmt.Printf("Failed to list runs: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Found %d runs:\n", len(runs))
		for _, r := range runs {
			fmt.Printf("- %s  %s  %s..%s  bars=%d  value=%s\n",
				r.ID, r.Symbol, r.Start.Format(dateLayout), r.End.Format(dateLayout), r.Bars, r.FinalValue.StringFixed(2))
		}
		return
	}

	run, err := store.GetRun(ctx, *runID)
	if err != nil {
		fmt.Printf("Failed to get run: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Run %s (%s, %s..%s)\n", run.ID, run.Symbol, run.Start.Format(dateLayout), run.End.Format(dateLayout))
	fmt.Printf("  Bars: %d  Cash: %s  Final value: %s\n", run.Bars, run.StartingCash.StringFixed(2), run.FinalValue.StringFixed(2))
	if run.FinishedAt.IsZero() {
		fmt.Println("  ⚠️ Run did not finish")
	}

	signals, err := store.ListSignals(ctx, run.ID)
	if err != nil {
		fmt.Printf("Failed to list signals: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signals (%d):\n", len(signals))
	for _, s := range signals {
		fmt.Printf("  %s %-4s %10.2f  %s\n", s.Date.Format(dateLayout), s.Kind, s.Price, s.Reason)
	}

	fills, err := store.ListFills(ctx, run.ID)
	if err != nil {
		fmt.Printf("Failed to list fills: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fills (%d):\n", len(fills))
	for _, f := range fills {
		fmt.Printf("  %s %-4s %d @ %s  fee %s\n", f.Date.Format(dateLayout), f.Side, f.Qty, f.Price.StringFixed(2), f.Commission.StringFixed(2))
	}
}
