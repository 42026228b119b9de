package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/campaign"
	"github.com/sells-group/outreach-cli/internal/dispatch"
	"github.com/sells-group/outreach-cli/internal/job"
	"github.com/sells-group/outreach-cli/internal/record"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run messaging campaigns over harvested records",
}

var dispatchStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new campaign",
	Long:  "Sends the template to every record matching the filter, skipping suppressed numbers. Interrupting with Ctrl-C pauses the campaign; continue it later with dispatch resume.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		name, _ := cmd.Flags().GetString("name")
		message, _ := cmd.Flags().GetString("message")
		templateName, _ := cmd.Flags().GetString("template")
		category, _ := cmd.Flags().GetString("category")
		location, _ := cmd.Flags().GetString("location")
		limit, _ := cmd.Flags().GetInt("limit")
		delaySecs, _ := cmd.Flags().GetInt("delay")

		if message == "" && templateName != "" {
			lib, err := campaign.LoadLibrary(cfg.Dispatch.TemplateFile)
			if err != nil {
				return err
			}
			message, err = lib.Get(templateName)
			if err != nil {
				return err
			}
		}
		if message == "" {
			return fmt.Errorf("either --message or --template is required")
		}

		delay := cfg.Dispatch.Delay()
		if cmd.Flags().Changed("delay") {
			delay = time.Duration(delaySecs) * time.Second
		}

		params := dispatch.StartParams{
			Name:     name,
			Template: message,
			Filter:   record.Filter{Category: category, Location: location, Limit: limit},
			Delay:    delay,
		}

		return env.Jobs.Run(ctx, job.KindDispatch, name, func(jobCtx context.Context) error {
			id, err := env.Dispatcher.Start(jobCtx, params)
			if id != "" {
				fmt.Printf("campaign %s\n", id)
			}
			return err
		})
	},
}

var dispatchResumeCmd = &cobra.Command{
	Use:   "resume <campaign-id>",
	Short: "Continue a paused campaign",
	Long:  "Re-resolves the campaign's recipients and sends to everyone without a success log entry. Recipients already messaged are never contacted twice.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Jobs.Run(ctx, job.KindDispatch, args[0], func(jobCtx context.Context) error {
			return env.Dispatcher.Resume(jobCtx, args[0])
		})
	},
}

func init() {
	dispatchStartCmd.Flags().String("name", "", "campaign name")
	dispatchStartCmd.Flags().String("message", "", "message template text ({name}, {category}, ... placeholders)")
	dispatchStartCmd.Flags().String("template", "", "named template from the template library file")
	dispatchStartCmd.Flags().String("category", "", "only records in this category")
	dispatchStartCmd.Flags().String("location", "", "only records in this location")
	dispatchStartCmd.Flags().Int("limit", 0, "cap the number of recipients (0 = all matching)")
	dispatchStartCmd.Flags().Int("delay", 0, "seconds to wait between sends (default from config)")
	_ = dispatchStartCmd.MarkFlagRequired("name")

	dispatchCmd.AddCommand(dispatchStartCmd)
	dispatchCmd.AddCommand(dispatchResumeCmd)
	rootCmd.AddCommand(dispatchCmd)
}
