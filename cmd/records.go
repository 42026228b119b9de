package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/record"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect and export harvested business records",
}

func recordFilterFromFlags(cmd *cobra.Command) record.Filter {
	category, _ := cmd.Flags().GetString("category")
	location, _ := cmd.Flags().GetString("location")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	return record.Filter{Category: category, Location: location, Limit: limit, Offset: offset}
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List harvested records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		filter := recordFilterFromFlags(cmd)
		records, err := env.Records.List(ctx, filter)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No records found.")
			return nil
		}
		formatRecords(os.Stdout, records)

		total, err := env.Records.Count(ctx, filter)
		if err != nil {
			return err
		}
		fmt.Printf("\n%d of %d records\n", len(records), total)
		return nil
	},
}

var recordsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export records to CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		filter := recordFilterFromFlags(cmd)
		if filter.Limit == 0 {
			filter.Limit = 100000
		}
		records, err := env.Records.List(ctx, filter)
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return eris.Wrapf(err, "create %s", out)
			}
			defer f.Close()
			w = f
		}

		switch format {
		case "csv":
			err = record.ExportCSV(w, records)
		case "xlsx":
			if out == "" {
				return eris.New("xlsx export requires --out")
			}
			err = record.ExportXLSX(w, records)
		default:
			return eris.Errorf("unknown export format: %s", format)
		}
		if err != nil {
			return err
		}
		if out != "" {
			fmt.Fprintf(os.Stderr, "exported %d records to %s\n", len(records), out)
		}
		return nil
	},
}

func formatRecords(w io.Writer, records []record.Business) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tLOCATION\tPHONE\tWHATSAPP\tEMAIL")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, r.Category, r.Location, r.Phone, r.WhatsApp, r.Email)
	}
	tw.Flush()
}

func init() {
	for _, c := range []*cobra.Command{recordsListCmd, recordsExportCmd} {
		c.Flags().String("category", "", "filter by category")
		c.Flags().String("location", "", "filter by location")
		c.Flags().Int("limit", 0, "maximum records (0 = default page)")
		c.Flags().Int("offset", 0, "records to skip")
	}
	recordsExportCmd.Flags().String("format", "csv", "export format: csv or xlsx")
	recordsExportCmd.Flags().String("out", "", "output file (default stdout for csv)")

	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsExportCmd)
	rootCmd.AddCommand(recordsCmd)
}
