package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klarsikt-ab/kartotek/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "kartotek",
	Short: "Entity resolution and lifecycle engine",
	Long:  "Resolves registry mentions of Swedish persons, companies, and addresses into canonical entities, with tiered human review, merge/split lifecycle, and a hash-chained provenance ledger.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
