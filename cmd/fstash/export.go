package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fstash/internal/api"
	"fstash/internal/config"
)

type manifestEntry struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Size int64  `yaml:"size"`
	Path string `yaml:"path"`
	Date string `yaml:"date"`
}

type manifest struct {
	GeneratedAt string          `yaml:"generated_at"`
	UsedBytes   int64           `yaml:"used_bytes"`
	TotalBytes  int64           `yaml:"total_bytes"`
	Files       []manifestEntry `yaml:"files"`
}

func buildManifest(resp api.ListResponse, now time.Time) manifest {
	m := manifest{
		GeneratedAt: now.UTC().Format(time.RFC3339),
		UsedBytes:   resp.Storage.Used,
		TotalBytes:  resp.Storage.Total,
		Files:       make([]manifestEntry, 0, len(resp.Files)),
	}
	for _, f := range resp.Files {
		m.Files = append(m.Files, manifestEntry{
			ID: f.ID, Name: f.Name, Type: f.Type,
			Size: f.Size, Path: f.Path, Date: f.Date,
		})
	}
	return m
}

func newExportCmd(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a YAML manifest of all stored files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.List(cmd.Context(), "")
				if err != nil {
					return err
				}

				data, err := yaml.Marshal(buildManifest(resp, time.Now()))
				if err != nil {
					return err
				}
				if output == "" {
					_, err = os.Stdout.Write(data)
					return err
				}
				return os.WriteFile(output, data, 0o644)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the manifest to a file instead of stdout")

	return cmd
}
