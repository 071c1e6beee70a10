package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/epiwatch/leishdash/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leishdash",
	Short: "Leishmaniasis notification reporting dashboard",
	Long:  "Loads SINAN leishmaniasis notification exports, computes case-count aggregates per state, municipality, location and socio-environmental variable, and serves them as an interactive dashboard.",
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
