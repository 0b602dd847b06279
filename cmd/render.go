package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/tacit-cli/internal/render"
)

var renderOutput string

var renderCmd = &cobra.Command{
	Use:   "render <owner/repo>",
	Short: "Render the published knowledge base as a guidance document",
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

		doc, err := render.Guidance(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}

		if renderOutput != "" {
			if err := os.WriteFile(renderOutput, []byte(doc), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", renderOutput)
			return nil
		}
		fmt.Print(doc)
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "write the document to a file")
	rootCmd.AddCommand(renderCmd)
}
