package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/tacit-cli/internal/federation"
	"github.com/sells-group/tacit-cli/internal/model"
)

var (
	contributeCategory   string
	contributeConfidence float64
	contributeExcerpt    string
	contributeFrom       string
)

var contributeCmd = &cobra.Command{
	Use:   "contribute <rule text>",
	Short: "Submit a rule from another repository into the proposal queue",
	Long:  "Matches the submission against pending proposals; a semantic match joins the existing proposal and raises its consensus confidence, otherwise a new proposal is created.",
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

		matcher := federation.NewMatcher(st, cfg.Pipeline.MatchThreshold)
		res, err := matcher.Submit(cmd.Context(), federation.Submission{
			Text:            args[0],
			Category:        model.ParseCategory(contributeCategory),
			Confidence:      contributeConfidence,
			SourceExcerpt:   contributeExcerpt,
			ContributorName: contributeFrom,
		})
		if err != nil {
			return err
		}

		if res.Matched {
			fmt.Printf("Joined proposal %s (similarity %.2f, %d contributors, consensus %.2f).\n",
				res.Proposal.ID, res.SimilarityScore, res.Proposal.ContributorCount, res.Proposal.Confidence)
		} else {
			fmt.Printf("Created proposal %s.\n", res.Proposal.ID)
		}
		return nil
	},
}

func init() {
	contributeCmd.Flags().StringVar(&contributeCategory, "category", "general", "rule category")
	contributeCmd.Flags().Float64Var(&contributeConfidence, "confidence", 0.70, "submitter confidence in [0,1]")
	contributeCmd.Flags().StringVar(&contributeExcerpt, "excerpt", "", "source excerpt backing the rule")
	contributeCmd.Flags().StringVar(&contributeFrom, "from", "", "contributing repository (owner/repo)")
	_ = contributeCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(contributeCmd)
}
