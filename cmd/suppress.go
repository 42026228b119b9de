package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/suppress"
)

var suppressCmd = &cobra.Command{
	Use:   "suppress",
	Short: "Manage the suppression list",
	Long:  "Numbers on the suppression list are excluded from every campaign. Invalid numbers are added automatically during dispatch; use these commands for manual opt-outs.",
}

var suppressAddCmd = &cobra.Command{
	Use:   "add <phone>",
	Short: "Add a phone number to the suppression list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		reason, _ := cmd.Flags().GetString("reason")
		added, err := env.Suppressed.Suppress(ctx, args[0], reason)
		if err != nil {
			return err
		}
		if added {
			fmt.Println("suppressed")
		} else {
			fmt.Println("already suppressed")
		}
		return nil
	},
}

var suppressRemoveCmd = &cobra.Command{
	Use:   "remove <phone>",
	Short: "Remove a phone number from the suppression list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Suppressed.Unsuppress(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("removed")
		return nil
	},
}

var suppressListCmd = &cobra.Command{
	Use:   "list",
	Short: "List suppressed phone numbers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Suppressed.List(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "Suppression list is empty.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PHONE\tREASON\tADDED")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\n",
				e.Phone, e.Reason, e.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		tw.Flush()
		return nil
	},
}

func init() {
	suppressAddCmd.Flags().String("reason", suppress.ReasonManual, "reason recorded with the entry")
	suppressCmd.AddCommand(suppressAddCmd)
	suppressCmd.AddCommand(suppressRemoveCmd)
	suppressCmd.AddCommand(suppressListCmd)
	rootCmd.AddCommand(suppressCmd)
}
