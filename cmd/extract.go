package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/tacit-cli/internal/pipeline"
)

var extractQuiet bool

var extractCmd = &cobra.Command{
	Use:   "extract <owner/repo>",
	Short: "Run a full knowledge extraction for a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "extract")
		if err != nil {
			return err
		}
		defer env.Close()

		var emitter pipeline.Emitter = pipeline.LogEmitter{}
		if extractQuiet {
			emitter = pipeline.NopEmitter{}
		}

		ex := pipeline.NewExtractor(env.Store, env.Engine, env.Tools, emitter, extractorOptions())
		run, err := ex.Run(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Run %s: %s\n", run.ID, run.Status)
		fmt.Printf("  tasks: %d total, %d failed\n", run.TasksTotal, run.TasksFailed)
		fmt.Printf("  PRs analyzed: %d\n", run.PRsAnalyzed)
		fmt.Printf("  rules found: %d\n", run.RulesFound)

		if failed := ex.FailedTasks(); len(failed) > 0 {
			fmt.Println("Failed tasks:")
			for _, f := range failed {
				fmt.Printf("  - %s (%s, %s): %s\n", f.TaskName, f.Phase, f.ErrorType, f.Error)
			}
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractQuiet, "quiet", false, "suppress progress events")
	rootCmd.AddCommand(extractCmd)
}
