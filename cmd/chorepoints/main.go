package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorepoints/internal/config"
	"github.com/dukerupert/chorepoints/internal/logging"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "chorepoints",
		Short:         "Homework and task review with a points ledger",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return serve(cmd.Context(), cfg, logging.Setup(cfg.LogLevel, cfg.LogFormat))
		},
	}
	root.AddCommand(newSeedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chorepoints:", err)
		os.Exit(1)
	}
}
