package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fstash/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "fstash",
		Short: "Fstash is a quota-aware personal file stash",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newPutCmd(cfg, &jsonOutput),
		newLsCmd(cfg, &jsonOutput),
		newRmCmd(cfg, &jsonOutput),
		newGetCmd(cfg),
		newInfoCmd(cfg, &jsonOutput),
		newExportCmd(cfg),
		newFsckCmd(cfg, &jsonOutput),
	)

	return cmd
}
