package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

// errUnitsFailed makes the process exit non-zero after the report is written.
var errUnitsFailed = errors.New("one or more batch units failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := &cobra.Command{
		Use:   "harmonizer",
		Short: "Harmonize raw generation data into generation_data",
		Long: `harmonizer normalizes raw generation observations from ENTSOE, ELEXON,
TAIPOWER, NVE, ENERGISTYRELSEN and EIA, matches them to asset phases and
writes hourly or monthly harmonized records, one day or month at a time.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newRetryCmd())
	rootCmd.AddCommand(newCheckCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errUnitsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
