package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/override"
	"github.com/wardenhq/warden/internal/types"
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Execute and inspect human override commands",
}

var overrideExecCmd = &cobra.Command{
	Use:   "exec <issue> <command> [--reason <text>]",
	Short: "Execute an override command against an issue",
	Long: `Executes a slash command directly, without going through a GitHub
comment. The command argument accepts the same forms as comments, with or
without the leading slash: not-spam, force-retry, approve-spec,
cancel-autofix, status, help.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		requireRepo()
		issue := parseIssueArg(args[0])

		name := args[1]
		if !strings.HasPrefix(name, "/") {
			name = "/" + name
		}
		text := name
		if reason, _ := cmd.Flags().GetString("reason"); reason != "" {
			text += " --reason " + reason
		}

		parsed := override.ParseComment(text, actor)
		if parsed == nil {
			fmt.Fprintf(os.Stderr, "Error: unknown override command %q\n", args[1])
			fmt.Fprintf(os.Stderr, "Hint: run 'warden help-commands' for the supported commands\n")
			os.Exit(1)
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
			outputJSON(map[string]string{"response": response})
			return
		}
		fmt.Println(response)
	},
}

var overrideHistoryCmd = &cobra.Command{
	Use:   "history [issue]",
	Short: "Show the override audit trail, optionally for one issue",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var issueNumber *int
		if len(args) == 1 {
			n := parseIssueArg(args[0])
			issueNumber = &n
		}

		records, err := overrides.GetOverrideHistory(context.Background(), issueNumber)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(records)
			return
		}
		if len(records) == 0 {
			fmt.Println("No overrides recorded")
			return
		}
		for _, rec := range records {
			line := fmt.Sprintf("%s  %s#%d  %s by %s",
				rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Repo, rec.IssueNumber, rec.OverrideType, rec.Actor)
			if rec.OriginalState != "" || rec.NewState != "" {
				line += fmt.Sprintf("  (%s -> %s)", rec.OriginalState, rec.NewState)
			}
			if rec.Reason != "" {
				line += ": " + rec.Reason
			}
			fmt.Println(line)
		}
	},
}

var overrideStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize override usage for a repository",
	Run: func(cmd *cobra.Command, args []string) {
		requireRepo()
		stats, err := overrides.GetOverrideStatistics(context.Background(), repo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(stats)
			return
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s: %s overrides\n", repo, cyan(strconv.Itoa(stats.Total)))

		if len(stats.ByType) > 0 {
			fmt.Println("by type:")
			keys := make([]string, 0, len(stats.ByType))
			for t := range stats.ByType {
				keys = append(keys, string(t))
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  %-16s %d\n", k, stats.ByType[types.OverrideType(k)])
			}
		}
		if len(stats.ByActor) > 0 {
			fmt.Println("by actor:")
			actors := make([]string, 0, len(stats.ByActor))
			for a := range stats.ByActor {
				actors = append(actors, a)
			}
			sort.Strings(actors)
			for _, a := range actors {
				fmt.Printf("  %-16s %d\n", a, stats.ByActor[a])
			}
		}
	},
}

func init() {
	overrideExecCmd.Flags().StringP("reason", "r", "", "Reason for the override")
	overrideExecCmd.Flags().Int("pr", 0, "Related pull request number")

	overrideCmd.AddCommand(overrideExecCmd)
	overrideCmd.AddCommand(overrideHistoryCmd)
	overrideCmd.AddCommand(overrideStatsCmd)
	rootCmd.AddCommand(overrideCmd)
}
