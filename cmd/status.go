package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sells-group/tacit-cli/internal/monitoring"
)

var statusLookbackHours int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge base and extraction health",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("review"); err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		snap, err := monitoring.NewCollector(st).Collect(cmd.Context(), statusLookbackHours)
		if err != nil {
			return err
		}

		fmt.Printf("Knowledge base (%s)\n", snap.CollectedAt.Format("2006-01-02 15:04 UTC"))
		fmt.Printf("  rules: %d total, %d published, avg confidence %.2f\n",
			snap.RulesTotal, snap.RulesPublished, snap.AvgConfidence)
		fmt.Printf("  pending proposals: %d\n", snap.PendingProposals)

		printBreakdown("by category", snap.RulesByCategory)
		printBreakdown("by source", snap.RulesBySource)

		fmt.Printf("Runs (last %dh)\n", snap.LookbackHours)
		fmt.Printf("  %d total: %d completed, %d failed, %d running (fail rate %.0f%%)\n",
			snap.RunsTotal, snap.RunsCompleted, snap.RunsFailed, snap.RunsRunning, snap.RunFailRate*100)
		fmt.Printf("  tasks failed: %d\n", snap.TasksFailed)
		return nil
	},
}

func printBreakdown(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("  %s:\n", title)
	for _, k := range keys {
		fmt.Printf("    %-14s %d\n", k, counts[k])
	}
}

func init() {
	statusCmd.Flags().IntVar(&statusLookbackHours, "lookback", 24, "run metrics lookback window in hours")
	rootCmd.AddCommand(statusCmd)
}
