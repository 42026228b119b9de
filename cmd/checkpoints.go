package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/checkpoint"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Inspect and manage harvest checkpoints",
}

var checkpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List harvest checkpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		cps, err := env.Checkpoints.List(ctx)
		if err != nil {
			return err
		}
		if len(cps) == 0 {
			fmt.Fprintln(os.Stderr, "No checkpoints found.")
			return nil
		}
		formatCheckpoints(os.Stdout, cps)
		return nil
	},
}

var checkpointsShowCmd = &cobra.Command{
	Use:   "show <category> <location>",
	Short: "Show the checkpoint for a query",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		cp, err := env.Checkpoints.Get(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if cp == nil {
			fmt.Fprintf(os.Stderr, "No checkpoint for %s / %s.\n", args[0], args[1])
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Category:\t%s\n", cp.Category)
		fmt.Fprintf(tw, "Location:\t%s\n", cp.Location)
		fmt.Fprintf(tw, "Status:\t%s\n", cp.Status)
		fmt.Fprintf(tw, "Found:\t%d\n", cp.TotalFound)
		fmt.Fprintf(tw, "Processed:\t%d\n", cp.TotalProcessed)
		fmt.Fprintf(tw, "Saved:\t%d\n", cp.TotalSaved)
		fmt.Fprintf(tw, "Next index:\t%d\n", cp.LastIndex)
		if cp.Error != "" {
			fmt.Fprintf(tw, "Error:\t%s\n", cp.Error)
		}
		fmt.Fprintf(tw, "Started:\t%s\n", cp.StartedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(tw, "Updated:\t%s\n", cp.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		tw.Flush()
		return nil
	},
}

var checkpointsResetCmd = &cobra.Command{
	Use:   "reset <category> <location>",
	Short: "Delete the checkpoint for a query",
	Long:  "Removes the stored progress for a (category, location) query so the next harvest starts from scratch. Harvested records are kept.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Checkpoints.Reset(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("checkpoint reset: %s / %s\n", args[0], args[1])
		return nil
	},
}

func formatCheckpoints(w io.Writer, cps []checkpoint.Checkpoint) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tLOCATION\tSTATUS\tPROCESSED\tSAVED\tFOUND\tUPDATED")
	for _, cp := range cps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			cp.Category, cp.Location, cp.Status,
			cp.TotalProcessed, cp.TotalSaved, cp.TotalFound,
			cp.UpdatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	tw.Flush()
}

func init() {
	checkpointsCmd.AddCommand(checkpointsListCmd)
	checkpointsCmd.AddCommand(checkpointsShowCmd)
	checkpointsCmd.AddCommand(checkpointsResetCmd)
	rootCmd.AddCommand(checkpointsCmd)
}
