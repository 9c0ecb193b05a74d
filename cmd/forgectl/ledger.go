package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/khoahotran/openforge/adapters/persistence"
	"github.com/khoahotran/openforge/adapters/pinning"
	backupUC "github.com/khoahotran/openforge/internal/application/usecase/backup"
	cleanupUC "github.com/khoahotran/openforge/internal/application/usecase/cleanup"
	"github.com/khoahotran/openforge/internal/domain/pin"
)

var (
	ledgerOwner  string
	ledgerStatus string
	ledgerLimit  int
	ledgerJSON   bool
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the pin ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger entries, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		if ledgerStatus != "" && !pin.Status(ledgerStatus).Valid() {
			return fmt.Errorf("unknown status %q", ledgerStatus)
		}

		ctx := cmd.Context()
		pool, err := persistence.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := persistence.NewPostgresPinLedger(pool).List(ctx, pin.Filter{
			Owner:  ledgerOwner,
			Status: pin.Status(ledgerStatus),
			Limit:  ledgerLimit,
		})
		if err != nil {
			return err
		}
		if ledgerJSON {
			return printJSON(cmd, entries)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CID\tKIND\tSTATUS\tOWNER\tUPDATED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.CID, e.Kind, e.Status, e.Owner, e.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var ledgerBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Pin a JSON snapshot of the ledger and print its CID",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		pool, err := persistence.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		pinner, err := pinning.NewPinner(ctx, cfg, log)
		if err != nil {
			return err
		}
		res, err := backupUC.NewBackupUseCase(persistence.NewPostgresPinLedger(pool), pinner, log).Execute(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d entries)\n", res.CID, res.Count)
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Unpin uploads that outlived the cleanup grace period",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		pool, err := persistence.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		pinner, err := pinning.NewPinner(ctx, cfg, log)
		if err != nil {
			return err
		}
		uc := cleanupUC.NewCleanupUseCase(pinner, persistence.NewPostgresPinLedger(pool), cfg.Cleanup.GracePeriod, log)
		n, err := uc.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unpinned %d stale uploads\n", n)
		return nil
	},
}

func init() {
	ledgerListCmd.Flags().StringVar(&ledgerOwner, "owner", "", "only entries owned by this address")
	ledgerListCmd.Flags().StringVar(&ledgerStatus, "status", "", "pinned, referenced, superseded or unpinned")
	ledgerListCmd.Flags().IntVar(&ledgerLimit, "limit", 50, "maximum entries")
	ledgerListCmd.Flags().BoolVar(&ledgerJSON, "json", false, "print JSON")
	ledgerCmd.AddCommand(ledgerListCmd, ledgerBackupCmd)
	rootCmd.AddCommand(ledgerCmd, sweepCmd)
}
