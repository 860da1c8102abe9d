package main

import (
	"github.com/spf13/cobra"

	"fstash/internal/api"
	"fstash/internal/config"
)

func newFsckCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "fsck",
		Short: "Check blob store, catalog, and ledger for drift",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Reconcile(cmd.Context(), apply)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeReconcileReport(resp)
			})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "delete orphan blobs and repair the ledger")

	return cmd
}

func writeReconcileReport(resp api.ReconcileResponse) error {
	mode := "dry run"
	if !resp.DryRun {
		mode = "applied"
	}
	if err := writePlain("reconcile (%s): ledger %s, catalog %s\n",
		mode, formatSize(resp.LedgerBytes), formatSize(resp.CatalogBytes)); err != nil {
		return err
	}
	for _, key := range resp.OrphanBlobs {
		if err := writePlain("  orphan blob: %s\n", key); err != nil {
			return err
		}
	}
	for _, key := range resp.MissingBlobs {
		if err := writePlain("  missing blob: %s\n", key); err != nil {
			return err
		}
	}
	if resp.RepairedLedger {
		if err := writePlain("  ledger repaired to %s\n", formatSize(resp.CatalogBytes)); err != nil {
			return err
		}
	}
	if resp.DeletedOrphans > 0 || resp.FailedDeletions > 0 {
		if err := writePlain("  orphans deleted: %d, failed: %d\n",
			resp.DeletedOrphans, resp.FailedDeletions); err != nil {
			return err
		}
	}
	return nil
}
