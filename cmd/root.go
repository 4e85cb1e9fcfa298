package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ballot-box-analysis",
	Short: "Ballot drop-box accessibility analysis pipeline",
	Long:  "Imports voter rolls and drop-box locations, geocodes addresses, generates travel-time isochrones, and measures how many voters live within reach of a ballot box.",
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
