package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ticketpool",
	Short: "ticketpool - group payments for event tickets",
	Long: `ticketpool lets several people jointly pay for a multi-ticket
purchase. Each contributor pays their share through a hosted checkout and
receives their own ticket once the whole group has paid.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"ticketpool version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("store", "", "Ledger backend: mongo or bolt (overrides STORE)")
	rootCmd.PersistentFlags().String("bolt-path", "", "Bolt database file (overrides BOLT_PATH)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(tierCmd)
	rootCmd.AddCommand(tokenCmd)
}
