package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Finalize funded pools and issue missing tickets",
	Long: `Run one recovery sweep over the ledger. Pending pools whose completed
contributions meet the target are finalized, and completed pools get a
ticket for every completed contribution that lacks one. With the mongo
store it is safe to run while the API is serving; the bolt file is locked
by a running server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := openLedger(ctx, cfg); err != nil {
			return err
		}
		defer cfg.Ledger.Close()

		if err := wireGroupPay(cfg); err != nil {
			return err
		}

		report, err := cfg.GroupPay.Recover(ctx)
		if err != nil {
			return fmt.Errorf("sweep failed: %v", err)
		}

		fmt.Printf("Pools finalized: %d\n", report.PoolsFinalized)
		fmt.Printf("Tickets issued:  %d\n", report.TicketsIssued)
		fmt.Printf("Failures:        %d\n", report.Failures)
		if report.Failures > 0 {
			return fmt.Errorf("%d pools still need attention", report.Failures)
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().Duration("timeout", 5*time.Minute, "Maximum time for the sweep")
}
