package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/resolvd/resolvd/internal/presentation/graph"
	"github.com/resolvd/resolvd/pkg/adapters/file"
)

var graphCmd = &cobra.Command{
	Use:   "graph [workflow]",
	Short: "Render a workflow as a Mermaid flowchart",
	Long:  `Prints Mermaid flowchart syntax for the named workflow, or for every loaded workflow when none is given. Paste the output into any Mermaid renderer.`,
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("workflows")

		loader, err := file.NewWorkflowLoader(dir)
		if err != nil {
			fmt.Printf("Error loading workflows: %v\n", err)
			os.Exit(1)
		}

		names, _ := loader.List()
		if len(args) > 0 {
			names = args
		}

		for _, name := range names {
			def, err := loader.Get(name)
			if err != nil {
				fmt.Printf("Error: workflow %q not found in %s\n", name, dir)
				os.Exit(1)
			}
			fmt.Println(graph.GenerateMermaid(def, nil))
		}
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
