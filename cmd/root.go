package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/booth-beacon/beacon-crawler/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Photo booth directory crawler",
	Long:  "Crawls photo booth directory sites, extracts booth listings, and reconciles them into a canonical store with geocoding and run monitoring.",
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
