package main

import (
	"github.com/spf13/cobra"

	"reclaim/config"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "reclaimd",
	Short: "Retired-address reclamation daemon.",
	Long: "reclaimd runs reclamation cycles over registered threads and " +
		"exposes them through a gRPC admin API. Settings come from " +
		"RECLAIM_* environment variables.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil,
		"load variables from these .env files first")
	rootCmd.AddCommand(serveCmd, collectCmd, statsCmd)
}

func loadConfig() (config.Config, error) {
	return config.Load(envFiles...)
}
