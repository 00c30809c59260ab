package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/warp/event-pricing/reconcile"
)

func cashStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cash-status",
		Short: "Compare expected and actual cash of an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireEvent(); err != nil {
				return err
			}
			s, err := reconcile.CashStatus(cmd.Context(), store, pricingEvent())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			row := func(label string, d decimal.Decimal) {
				fmt.Fprintf(tw, "%s\t%s\t\n", label, d.StringFixed(2))
			}

			fmt.Fprintf(tw, "Participants\t%d\t\n", s.ParticipantCount)
			row("Base price total", s.TotalBasePrice)
			row("Expected income", s.ExpectedIncome)
			row("  from participants", s.ExpectedParticipantIncome)
			row("  from subsidies", s.ExpectedSubsidies)
			row("Non-subsidy discounts", s.NonSubsidyDiscount)
			fmt.Fprintln(tw, "\t\t")
			row("Participant payments", s.ParticipantPayments)
			row("Other income", s.OtherIncome)
			row("Settled expenses", s.SettledExpenses)
			row("All expenses", s.TotalExpenses)
			fmt.Fprintln(tw, "\t\t")
			row("Expected balance", s.ExpectedBalance)
			row("Actual balance", s.ActualBalance)
			row("Difference", s.BalanceDifference)
			row("Outstanding participant income", s.OutstandingParticipantIncome)
			row("Outstanding other income", s.OutstandingOtherIncome)
			row("Outstanding expenses", s.OutstandingExpenses)
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nStatus: %s (%s)\n", s.Status.Code, s.Status.Color)
			return nil
		},
	}
}
