package main

import (
	"github.com/spf13/cobra"

	"fstash/internal/api"
	"fstash/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show server and storage diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}

				if err := writePlain("db: %s\nschema version: %d\ntotal files: %d\n",
					resp.DBPath, resp.SchemaVersion, resp.TotalFiles); err != nil {
					return err
				}
				for kind, count := range resp.FileCounts {
					if err := writePlain("  %s: %d\n", kind, count); err != nil {
						return err
					}
				}
				return writeStorageSummary(resp.Storage)
			})
		},
	}
}
