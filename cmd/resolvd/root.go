package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "resolvd",
	Short: "resolvd is a rule-driven customer support desk",
	Long:  `resolvd runs customer support sessions through declarative JSON workflow policies, with runtime overrides and a full decision trace.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("workflows", "workflows", "Directory containing workflow JSON documents")
	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to the YAML config file")
}
