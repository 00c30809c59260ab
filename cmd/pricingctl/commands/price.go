package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/event-pricing/pricing"
)

func priceCmd() *cobra.Command {
	var (
		roleID          string
		familyID        string
		withoutOverride bool
	)

	cmd := &cobra.Command{
		Use:   "price [participant-id]",
		Short: "Price one participant, or every active participant of an event",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireEvent(); err != nil {
				return err
			}

			var results []pricing.PricingResult
			var totals *pricing.Totals
			if len(args) == 1 {
				r, err := pricing.PriceParticipant(cmd.Context(), store, pricingEvent(), pricing.ParticipantID(args[0]))
				if err != nil {
					return err
				}
				results = []pricing.PricingResult{*r}
			} else {
				cohort, err := pricing.LoadCohort(cmd.Context(), store, pricingEvent(), pricing.ParticipantFilter{
					RoleID:          pricing.RoleID(roleID),
					FamilyID:        pricing.FamilyID(familyID),
					WithoutOverride: withoutOverride,
				})
				if err != nil {
					return err
				}
				results = cohort.Results
				totals = &cohort.Totals
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PARTICIPANT\tAGE\tBASE\tROLE\tFAMILY\tFINAL\tNOTE")
			for _, r := range results {
				note := ""
				if r.HasOverride() {
					note = "manual price"
				} else if r.Family != nil && r.Family.ChildPosition > 0 {
					note = fmt.Sprintf("child #%d", r.Family.ChildPosition)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
					r.Name, r.Age,
					pricing.RoundTotal(r.BasePrice).StringFixed(2),
					pricing.RoundTotal(r.RoleDiscountAmount()).StringFixed(2),
					pricing.RoundTotal(r.FamilyDiscountAmount()).StringFixed(2),
					pricing.RoundTotal(r.FinalPrice).StringFixed(2),
					note)
			}
			if totals != nil {
				fmt.Fprintf(tw, "Total (%d)\t\t%s\t\t\t%s\t\n",
					totals.ParticipantCount, totals.BasePrice.StringFixed(2), totals.ExpectedParticipantIncome.StringFixed(2))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&roleID, "role", "", "only participants with this role id")
	cmd.Flags().StringVar(&familyID, "family", "", "only members of this family id")
	cmd.Flags().BoolVar(&withoutOverride, "without-override", false, "skip participants with a manual price")
	return cmd
}
