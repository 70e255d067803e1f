// Command helper runs one-off maintenance jobs against the configured store.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mdmc/internal/utils/logger"
)

var log = logger.New("helper")

var rootCmd = &cobra.Command{
	Use:   "mdmc-helper",
	Short: "Maintenance commands for the MDMC CRM",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if _, err := os.Stat(".env"); err == nil {
			if err := godotenv.Load(); err != nil {
				log.Warn("Failed to load .env: %v", err)
			}
		}
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
