package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var ratelimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Inspect GitHub rate limiting and AI spend",
}

var ratelimitStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current token and budget headroom",
	Run: func(cmd *cobra.Command, args []string) {
		stats := limiter.Statistics()

		if jsonOutput {
			outputJSON(stats)
			return
		}

		githubOK, githubMsg := limiter.CheckGitHubAvailable()
		costOK, costMsg := limiter.CheckCostAvailable()

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		mark := func(ok bool) string {
			if ok {
				return green("✓")
			}
			return red("✗")
		}

		fmt.Printf("%s github: %s\n", mark(githubOK), githubMsg)
		fmt.Printf("%s cost:   %s\n", mark(costOK), costMsg)
		fmt.Printf("requests=%d errors=%d rate_limited=%d\n",
			stats.GitHubRequests, stats.GitHubErrors, stats.GitHubRateLimited)
	},
}

var ratelimitReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the full usage report including the AI cost ledger",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			outputJSON(map[string]interface{}{
				"statistics": limiter.Statistics(),
				"operations": limiter.CostTracker().Operations(),
			})
			return
		}
		fmt.Print(limiter.Report())
	},
}

var ratelimitAcquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Consume one GitHub request token, waiting if none are available",
	Run: func(cmd *cobra.Command, args []string) {
		if err := limiter.AcquireGitHub(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			outputJSON(map[string]bool{"acquired": true})
			return
		}
		fmt.Println("acquired")
	},
}

func init() {
	ratelimitCmd.AddCommand(ratelimitStatusCmd)
	ratelimitCmd.AddCommand(ratelimitReportCmd)
	ratelimitCmd.AddCommand(ratelimitAcquireCmd)
	rootCmd.AddCommand(ratelimitCmd)
}
