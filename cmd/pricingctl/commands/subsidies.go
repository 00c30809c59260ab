package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/event-pricing/pricing"
	"github.com/warp/event-pricing/report"
)

func subsidiesCmd() *cobra.Command {
	var (
		kind   string
		roleID string
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "subsidies",
		Short: "Show expected subsidies, or export one subsidy list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireEvent(); err != nil {
				return err
			}
			_, overview, err := pricing.LoadSubsidies(cmd.Context(), store, pricingEvent())
			if err != nil {
				return err
			}

			if kind == "" {
				return printOverview(cmd.OutOrStdout(), overview)
			}

			writer, err := report.WriterFor(format)
			if err != nil {
				return err
			}
			var table report.Table
			switch kind {
			case "role":
				group, err := overview.RoleGroup(pricing.RoleID(roleID))
				if err != nil {
					return fmt.Errorf("role %q: %w", roleID, err)
				}
				table = report.RoleSubsidyTable(group)
			case "family":
				table = report.FamilySubsidyTable(overview.Family)
			default:
				return &pricing.InputError{Field: "export", Value: kind, Reason: "expected role or family"}
			}
			return writeTable(cmd.OutOrStdout(), out, writer, table)
		},
	}

	cmd.Flags().StringVar(&kind, "export", "", "export a list instead of the overview: role or family")
	cmd.Flags().StringVar(&roleID, "role", "", "role id for --export=role")
	cmd.Flags().StringVar(&format, "format", "csv", "export format: csv or json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the export to a file instead of stdout")
	return cmd
}

func printOverview(w io.Writer, o pricing.SubsidyOverview) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tPARTICIPANTS\tBASE\tSUBSIDY")
	for _, g := range o.Roles {
		fmt.Fprintf(tw, "%s (%s, %s%%)\t%d\t%s\t%s\n",
			g.RoleName, g.RoleID, g.DiscountPercent.String(), len(g.Lines),
			g.TotalBasePrice.StringFixed(2), g.TotalSubsidy.StringFixed(2))
	}
	if o.Family != nil {
		fmt.Fprintf(tw, "Family discount\t%d\t%s\t%s\n",
			len(o.Family.Lines), o.Family.TotalBasePrice.StringFixed(2), o.Family.TotalSubsidy.StringFixed(2))
	}
	fmt.Fprintf(tw, "Total\t\t\t%s\n", o.GrandTotal.StringFixed(2))
	return tw.Flush()
}

// writeTable writes to path, or to stdout when path is empty.
func writeTable(stdout io.Writer, path string, writer report.Writer, table report.Table) error {
	if path == "" {
		return writer.Write(stdout, table)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writer.Write(f, table); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}
