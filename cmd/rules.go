package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/store"
)

var (
	rulesCategory      string
	rulesSource        string
	rulesMinConfidence float64
	rulesPublishedOnly bool
	rulesLimit         int
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and vote on knowledge rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules in the knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("review"); err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		rules, err := st.ListRules(cmd.Context(), store.RuleFilter{
			Category:      model.Category(rulesCategory),
			SourceKind:    model.SourceKind(rulesSource),
			MinConfidence: rulesMinConfidence,
			PublishedOnly: rulesPublishedOnly,
			Limit:         rulesLimit,
		})
		if err != nil {
			return err
		}

		if len(rules) == 0 {
			fmt.Println("No rules found.")
			return nil
		}
		for _, r := range rules {
			published := " "
			if r.Published {
				published = "*"
			}
			fmt.Printf("%s %s [%s/%s %.2f votes:%+d]\n  %s\n",
				published, r.ID, r.Category, r.SourceKind, r.Confidence, r.FeedbackScore, r.Text)
		}
		return nil
	},
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <rule-id>",
	Short: "Show one rule with its decision trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("review"); err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		r, err := st.GetRule(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", r.Text)
		fmt.Printf("  category: %s  source: %s (%s)\n", r.Category, r.SourceKind, r.SourceRef)
		fmt.Printf("  confidence: %.2f  votes: %+d  published: %v\n", r.Confidence, r.FeedbackScore, r.Published)
		if r.ProvenanceSummary != "" {
			fmt.Printf("  provenance: %s\n", r.ProvenanceSummary)
		}

		trail, err := st.ListTrail(cmd.Context(), r.ID)
		if err != nil {
			return err
		}
		if len(trail) > 0 {
			fmt.Println("Trail:")
			for _, e := range trail {
				fmt.Printf("  %s %s: %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.EventType, e.Description)
			}
		}
		return nil
	},
}

func newRuleVoteCmd(use, short string, delta int) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <rule-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate("review"); err != nil {
				return err
			}
			st, err := initStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.VoteRule(cmd.Context(), args[0], delta); err != nil {
				return err
			}
			r, err := st.GetRule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Rule %s now at %+d votes.\n", r.ID, r.FeedbackScore)
			return nil
		},
	}
}

func init() {
	rulesListCmd.Flags().StringVar(&rulesCategory, "category", "", "filter by category")
	rulesListCmd.Flags().StringVar(&rulesSource, "source", "", "filter by source kind")
	rulesListCmd.Flags().Float64Var(&rulesMinConfidence, "min-confidence", 0, "minimum confidence")
	rulesListCmd.Flags().BoolVar(&rulesPublishedOnly, "published", false, "published rules only")
	rulesListCmd.Flags().IntVar(&rulesLimit, "limit", 0, "maximum rules to show")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(newRuleVoteCmd("upvote", "Record positive feedback on a rule", 1))
	rulesCmd.AddCommand(newRuleVoteCmd("downvote", "Record negative feedback on a rule", -1))
	rootCmd.AddCommand(rulesCmd)
}
