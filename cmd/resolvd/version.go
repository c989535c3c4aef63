package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/resolvd/resolvd"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of resolvd",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("resolvd version %s\n", resolvd.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
