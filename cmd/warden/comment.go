package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/override"
)

var commentCmd = &cobra.Command{
	Use:   "comment <issue> <text>",
	Short: "Process an issue comment, executing any override command in it",
	Long: `Feeds a GitHub comment body through the slash-command parser. Free
text is ignored with exit status 0; a recognized command is executed and
its response printed for posting back to the thread.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		requireRepo()
		issue := parseIssueArg(args[0])
		text := args[1]
		author, _ := cmd.Flags().GetString("author")
		if author == "" {
			author = actor
		}

		parsed := override.ParseComment(text, author)
		if parsed == nil {
			// Not a command. Plain comments are not warden's business.
			if jsonOutput {
				outputJSON(map[string]interface{}{"command": nil})
			} else {
				fmt.Println("No override command in comment")
			}
			return
		}

		var prNumber *int
		if pr, _ := cmd.Flags().GetInt("pr"); pr > 0 {
			prNumber = &pr
		}

		response, err := overrides.ExecuteCommand(context.Background(), parsed, repo, issue, prNumber)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			outputJSON(map[string]string{
				"command":  string(parsed.Command),
				"response": response,
			})
			return
		}
		fmt.Println(response)
	},
}

func init() {
	commentCmd.Flags().String("author", "", "Comment author (default: actor)")
	commentCmd.Flags().Int("pr", 0, "Related pull request number")
	rootCmd.AddCommand(commentCmd)
}
