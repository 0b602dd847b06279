package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/tacit-cli/internal/federation"
	"github.com/sells-group/tacit-cli/internal/model"
)

var (
	proposalsStatus  string
	reviewFeedback   string
	reviewReviewedBy string
)

var proposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "Review pending rule proposals",
}

var proposalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proposals",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("review"); err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		proposals, err := st.ListProposals(cmd.Context(), model.ProposalStatus(proposalsStatus))
		if err != nil {
			return err
		}
		if len(proposals) == 0 {
			fmt.Println("No proposals found.")
			return nil
		}
		for _, p := range proposals {
			fmt.Printf("%s [%s %.2f, %d contributor(s), by %s]\n  %s\n",
				p.ID, p.Status, p.Confidence, p.ContributorCount, p.ProposedBy, p.Text)
		}
		return nil
	},
}

var proposalsApproveCmd = &cobra.Command{
	Use:   "approve <proposal-id>",
	Short: "Approve a proposal and promote it to a rule",
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

		rule, err := federation.Approve(cmd.Context(), st, args[0], reviewReviewedBy, reviewFeedback)
		if err != nil {
			return err
		}
		fmt.Printf("Approved. Rule %s created (confidence %.2f).\n", rule.ID, rule.Confidence)
		return nil
	},
}

var proposalsRejectCmd = &cobra.Command{
	Use:   "reject <proposal-id>",
	Short: "Reject a proposal (retained for audit)",
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

		if err := st.ReviewProposal(cmd.Context(), args[0], model.ProposalRejected, reviewReviewedBy, reviewFeedback); err != nil {
			return err
		}
		fmt.Println("Rejected.")
		return nil
	},
}

func init() {
	proposalsListCmd.Flags().StringVar(&proposalsStatus, "status", "pending", "filter by status (pending, approved, rejected, or empty for all)")
	for _, c := range []*cobra.Command{proposalsApproveCmd, proposalsRejectCmd} {
		c.Flags().StringVar(&reviewFeedback, "feedback", "", "reviewer feedback")
		c.Flags().StringVar(&reviewReviewedBy, "by", "", "reviewer name")
	}

	proposalsCmd.AddCommand(proposalsListCmd)
	proposalsCmd.AddCommand(proposalsApproveCmd)
	proposalsCmd.AddCommand(proposalsRejectCmd)
	rootCmd.AddCommand(proposalsCmd)
}
