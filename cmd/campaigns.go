package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/campaign"
)

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "Inspect dispatch campaigns",
}

var campaignsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		camps, err := env.Campaigns.List(ctx)
		if err != nil {
			return err
		}
		if len(camps) == 0 {
			fmt.Fprintln(os.Stderr, "No campaigns found.")
			return nil
		}
		formatCampaigns(os.Stdout, camps)
		return nil
	},
}

var campaignsShowCmd = &cobra.Command{
	Use:   "show <campaign-id>",
	Short: "Show a campaign and its send log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		camp, err := env.Campaigns.Get(ctx, args[0])
		if err != nil {
			return err
		}
		logs, err := env.Campaigns.Logs(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Campaign:  %s (%s)\n", camp.Name, camp.ID)
		fmt.Printf("Status:    %s\n", camp.Status)
		fmt.Printf("Progress:  %d sent, %d failed of %d targets\n",
			camp.SentCount, camp.FailedCount, camp.TargetCount)
		fmt.Printf("Started:   %s\n", camp.StartedAt.Local().Format("2006-01-02 15:04:05"))
		if camp.EndedAt != nil {
			fmt.Printf("Ended:     %s\n", camp.EndedAt.Local().Format("2006-01-02 15:04:05"))
		}
		if len(logs) == 0 {
			return nil
		}

		fmt.Println()
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RECIPIENT\tPHONE\tOUTCOME\tSENT AT\tERROR")
		for _, l := range logs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				l.RecipientName, l.Phone, l.Outcome,
				l.SentAt.Local().Format("2006-01-02 15:04:05"), l.Error,
			)
		}
		tw.Flush()
		return nil
	},
}

func formatCampaigns(w io.Writer, camps []campaign.Campaign) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSENT\tFAILED\tTARGETS\tSTARTED")
	for _, c := range camps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			c.ID, c.Name, c.Status,
			c.SentCount, c.FailedCount, c.TargetCount,
			c.StartedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	tw.Flush()
}

func init() {
	campaignsCmd.AddCommand(campaignsListCmd)
	campaignsCmd.AddCommand(campaignsShowCmd)
	rootCmd.AddCommand(campaignsCmd)
}
