package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/aiclient"
	"github.com/wardenhq/warden/internal/config"
)

var aiCmd = &cobra.Command{
	Use:   "ai <prompt>",
	Short: "Send one metered prompt to the model, within the cost budget",
	Long: `Sends a single prompt through the budget-enforcing AI client: the
call is refused when the spend ceiling is reached, and the response's
actual token usage is recorded against the budget. The operation name
labels the entry in the cost ledger (see 'warden ratelimit report').

The API key comes from ANTHROPIC_API_KEY or the anthropic-api-key config
key; the model from --model or the model config key.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		model, _ := cmd.Flags().GetString("model")
		if model == "" {
			model = config.GetString("model")
		}
		operation, _ := cmd.Flags().GetString("operation")

		client, err := aiclient.New(config.GetString("anthropic-api-key"), model, limiter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		text, err := client.Complete(cmd.Context(), operation, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"response":   text,
				"total_cost": limiter.Statistics().TotalCost,
			})
			return
		}
		fmt.Println(text)
	},
}

func init() {
	aiCmd.Flags().String("model", "", "Model name (default: model config key)")
	aiCmd.Flags().String("operation", "cli", "Operation name for the cost ledger")
	rootCmd.AddCommand(aiCmd)
}
