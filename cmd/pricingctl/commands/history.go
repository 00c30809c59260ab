package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/warp/event-pricing/pricing"
	"github.com/warp/event-pricing/reconcile"
	"github.com/warp/event-pricing/report"
)

func historyCmd() *cobra.Command {
	var (
		from, until string
		txType      string
		minAmount   string
		maxAmount   string
		search      string
		format      string
		out         string
		export      bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List payments, incomes and expenses with a running balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireEvent(); err != nil {
				return err
			}

			filter := reconcile.HistoryFilter{Search: search}
			var err error
			if filter.From, err = optionalDate("from", from); err != nil {
				return err
			}
			if filter.Until, err = optionalDate("until", until); err != nil {
				return err
			}
			if filter.Type, err = reconcile.ParseTransactionType(txType); err != nil {
				return err
			}
			if filter.MinAmount, err = optionalAmount("min", minAmount); err != nil {
				return err
			}
			if filter.MaxAmount, err = optionalAmount("max", maxAmount); err != nil {
				return err
			}

			h, err := reconcile.LoadHistory(cmd.Context(), store, pricingEvent(), filter)
			if err != nil {
				return err
			}

			if export {
				writer, err := report.WriterFor(format)
				if err != nil {
					return err
				}
				return writeTable(cmd.OutOrStdout(), out, writer, report.HistoryTable(h))
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tBALANCE\tREFERENCE\tPARTICIPANT")
			for _, t := range h.Transactions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					t.Date, t.Type, t.Amount.StringFixed(2), t.RunningBalance.StringFixed(2), t.Reference, t.Participant)
			}
			fmt.Fprintf(tw, "\t\t\t\t\t\nIncome\t\t%s\t\t\t\n", h.TotalIncome.StringFixed(2))
			fmt.Fprintf(tw, "Expenses\t\t%s\t\t\t\n", h.TotalExpenses.StringFixed(2))
			fmt.Fprintf(tw, "Net\t\t%s\t\t\t\n", h.Net.StringFixed(2))
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "last date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&txType, "type", "", "payment, income or expense")
	cmd.Flags().StringVar(&minAmount, "min", "", "minimum amount")
	cmd.Flags().StringVar(&maxAmount, "max", "", "maximum amount")
	cmd.Flags().StringVar(&search, "search", "", "match reference, description, participant or family")
	cmd.Flags().BoolVar(&export, "export", false, "write the history as a file, oldest first")
	cmd.Flags().StringVar(&format, "format", "csv", "export format: csv or json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the export to a file instead of stdout")
	return cmd
}

func optionalDate(field, s string) (pricing.Date, error) {
	if s == "" {
		return pricing.Date{}, nil
	}
	d, err := pricing.ParseDate(s)
	if err != nil {
		return pricing.Date{}, &pricing.InputError{Field: field, Value: s, Reason: "expected YYYY-MM-DD"}
	}
	return d, nil
}

func optionalAmount(field, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, &pricing.InputError{Field: field, Value: s, Reason: "not a number"}
	}
	return &d, nil
}
