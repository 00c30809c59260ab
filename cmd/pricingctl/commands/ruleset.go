package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func loadRulesetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load-ruleset <file.json | ->",
		Short: "Validate and store a ruleset document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc []byte
			var err error
			if args[0] == "-" {
				doc, err = io.ReadAll(cmd.InOrStdin())
			} else {
				doc, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			rs, err := store.SaveRulesetJSON(cmd.Context(), string(doc))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored ruleset %s for event %s (%s to %s, active=%t)\n",
				rs.ID, rs.EventID, rs.ValidFrom, rs.ValidUntil, rs.IsActive)
			return nil
		},
	}
}
