package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/lifecycle"
)

var conflictCmd = &cobra.Command{
	Use:   "conflict <issue> <operation>",
	Short: "Check whether an automated operation may proceed against an issue",
	Long: `Evaluates the lifecycle policy for an operation before the automation
runs it. Known operations:

  auto_fix    automated fix generation
  pr_review   automated PR review handling

Unknown operations are denied. Exit status is 0 when the operation may
proceed and 1 when it is blocked.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		requireRepo()
		issue := parseIssueArg(args[0])
		operation := args[1]
		requester, _ := cmd.Flags().GetString("requester")
		if requester == "" {
			requester = actor
		}

		result, err := lifecycles.CheckConflict(context.Background(), repo, issue, operation, requester)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(result)
			if result.HasConflict {
				os.Exit(1)
			}
			return
		}

		if result.HasConflict {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %s blocked on %s#%d: %s\n", red("✗"), operation, repo, issue, result.Message)
			if result.ResolutionHint != "" {
				fmt.Printf("Hint: %s\n", result.ResolutionHint)
			}
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s may proceed on %s#%d\n", green("✓"), operation, repo, issue)
	},
}

func init() {
	conflictCmd.Flags().String("requester", "", fmt.Sprintf("Component requesting the operation, e.g. %q (default: actor)", lifecycle.OpAutoFix))
	rootCmd.AddCommand(conflictCmd)
}
