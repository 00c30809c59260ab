package commands

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/warp/event-pricing/pkg/logging"
	"github.com/warp/event-pricing/pricing"
	"github.com/warp/event-pricing/store/sqlite"
)

var (
	dbPath  string
	eventID string
	store   *sqlite.Store
)

// Execute runs the pricingctl command tree.
func Execute() error {
	root := newRootCmd()
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pricingctl",
		Short:        "Inspect event prices, subsidies and cash position",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			logging.Setup()

			if dbPath == "" {
				dbPath = os.Getenv("DATABASE_PATH")
			}
			if dbPath == "" {
				dbPath = "event-pricing.db"
			}
			s, err := sqlite.New(dbPath)
			if err != nil {
				return err
			}
			store = s
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if store == nil {
				return nil
			}
			return store.Close()
		},
	}

	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default $DATABASE_PATH or event-pricing.db)")
	root.PersistentFlags().StringVarP(&eventID, "event", "e", "", "event id")

	root.AddCommand(
		eventsCmd(),
		cashStatusCmd(),
		subsidiesCmd(),
		priceCmd(),
		historyCmd(),
		loadRulesetCmd(),
		seedCmd(),
	)
	return root
}

func requireEvent() error {
	if eventID == "" {
		return errMissingEvent
	}
	return nil
}

func pricingEvent() pricing.EventID { return pricing.EventID(eventID) }
