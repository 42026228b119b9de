package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/harvest"
	"github.com/sells-group/outreach-cli/internal/job"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest <category> <location>",
	Short: "Harvest business listings for a category and location",
	Long:  "Walks the configured directory for the query and folds each listing into the record store. Progress is checkpointed per item; rerun with --resume to continue an interrupted harvest.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		resume, _ := cmd.Flags().GetBool("resume")
		maxResults, _ := cmd.Flags().GetInt("max-results")
		if maxResults == 0 {
			maxResults = cfg.Harvest.MaxResults
		}

		params := harvest.Params{
			Category:    args[0],
			Location:    args[1],
			MaxResults:  maxResults,
			Resume:      resume,
			Requirement: cfg.Harvest.Contact,
		}

		desc := fmt.Sprintf("%s in %s", params.Category, params.Location)
		return env.Jobs.Run(ctx, job.KindHarvest, desc, func(jobCtx context.Context) error {
			return env.Harvester.Run(jobCtx, params)
		})
	},
}

func init() {
	harvestCmd.Flags().Bool("resume", false, "continue from the last checkpoint instead of starting over")
	harvestCmd.Flags().Int("max-results", 0, "stop after this many candidates (default from config, 0 = all)")
	rootCmd.AddCommand(harvestCmd)
}
