package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/resolvd/resolvd/internal/validator"
	"github.com/resolvd/resolvd/pkg/adapters/file"
	"github.com/resolvd/resolvd/pkg/domain"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check workflow documents for consistency",
	Long:  `Parses every workflow JSON document in the workflows directory and reports structural and semantic errors: missing rule ids, unknown actions or operators, unreachable rules, and routes to workflows that do not exist.`,
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("workflows")
		if len(args) > 0 {
			dir = args[0]
		}

		if err := runValidate(dir); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("All workflow documents are valid.")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read workflows dir: %w", err)
	}

	var problems []string
	defs := make(map[string]*domain.WorkflowDefinition)
	checked := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		checked++
		def, err := file.ParseWorkflow(filepath.Join(dir, entry.Name()))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		defs[def.WorkflowName] = def
		fmt.Printf("  %s: workflow %q, %d rules\n", entry.Name(), def.WorkflowName, len(def.Rules))
	}

	if checked == 0 {
		return fmt.Errorf("no workflow documents found in %s", dir)
	}
	problems = append(problems, validator.ValidateSet(defs)...)
	if len(problems) > 0 {
		return fmt.Errorf("%d document(s) invalid:\n  %s", len(problems), strings.Join(problems, "\n  "))
	}
	return nil
}
