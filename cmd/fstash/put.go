package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fstash/internal/api"
	"fstash/internal/config"
)

func newPutCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "put <file>...",
		Short: "Upload one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				var responses []api.UploadResponse
				for _, path := range args {
					f, err := os.Open(path)
					if err != nil {
						return err
					}
					resp, err := client.Upload(cmd.Context(), filepath.Base(path), f)
					f.Close()
					if err != nil {
						return err
					}
					responses = append(responses, resp)

					if !*jsonOutput {
						if err := writePlain("uploaded %s (%s) as %s\n",
							resp.File.Name, formatSize(resp.File.Size), resp.File.Path); err != nil {
							return err
						}
					}
				}

				if *jsonOutput {
					return writeJSON(responses)
				}
				if len(responses) > 0 {
					return writeStorageSummary(responses[len(responses)-1].Storage)
				}
				return nil
			})
		},
	}
}
