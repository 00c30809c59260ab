package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var errMissingEvent = errors.New("--event is required")

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := store.ListEvents(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTART\tEND")
			for _, e := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Name, e.StartDate, e.EndDate)
			}
			return tw.Flush()
		},
	}
}
