package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/event-pricing/api"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "seed <scenario>",
		Short:     "Reset the database and load a demo scenario",
		Long:      "Reset the database and load a demo scenario: summer-camp, weekend-retreat or no-ruleset.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"summer-camp", "weekend-retreat", "no-ruleset"},
		RunE: func(cmd *cobra.Command, args []string) error {
			h := api.NewHandler(store)
			if err := h.LoadScenarioByID(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded scenario %s into %s\n", args[0], dbPath)
			return nil
		},
	}
}
