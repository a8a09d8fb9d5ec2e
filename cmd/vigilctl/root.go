package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "vigilctl",
	Short:   "vigilnet operator CLI",
	Long:    "vigilctl manages tenants, API keys, and digests for a vigilnet deployment.",
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("output", "table", "output format: table, json")
}

func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}
