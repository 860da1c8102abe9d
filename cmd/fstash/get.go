package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fstash/internal/api"
	"fstash/internal/config"
)

func newGetCmd(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Download one stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid file id %q", args[0])
			}

			return withClient(cfg, func(client *api.Client) error {
				listed, err := client.List(cmd.Context(), "")
				if err != nil {
					return err
				}
				var target *api.StoredFile
				for i := range listed.Files {
					if listed.Files[i].ID == id {
						target = &listed.Files[i]
						break
					}
				}
				if target == nil {
					return fmt.Errorf("file %d not found", id)
				}

				dest := output
				if dest == "" {
					dest = target.Name
				}
				f, err := os.Create(dest)
				if err != nil {
					return err
				}
				defer f.Close()

				key := strings.TrimPrefix(target.Path, "uploads/")
				if err := client.Download(cmd.Context(), key, f); err != nil {
					os.Remove(dest)
					return err
				}
				return writePlain("wrote %s (%s)\n", dest, formatSize(target.Size))
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path (defaults to the stored name)")

	return cmd
}
