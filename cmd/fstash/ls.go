package main

import (
	"github.com/spf13/cobra"

	"fstash/internal/api"
	"fstash/internal/config"
)

func newLsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List stored files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if err := writeFileList(resp.Files); err != nil {
					return err
				}
				return writeStorageSummary(resp.Storage)
			})
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "kind filter (all, image, video, pdf, other)")

	return cmd
}
