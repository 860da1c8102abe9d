package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"fstash/internal/api"
	"fstash/internal/config"
)

func newRmCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete stored files by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			return withClient(cfg, func(client *api.Client) error {
				var last api.DeleteResponse
				var responses []api.DeleteResponse
				for _, id := range ids {
					resp, err := client.Delete(cmd.Context(), id)
					if err != nil {
						return err
					}
					last = resp
					responses = append(responses, resp)
					if !*jsonOutput {
						if err := writePlain("%s\n", resp.Message); err != nil {
							return err
						}
					}
				}

				if *jsonOutput {
					return writeJSON(responses)
				}
				return writeStorageSummary(last.Storage)
			})
		},
	}
}
