package main

import (
	"os"

	"github.com/warp/event-pricing/cmd/pricingctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
