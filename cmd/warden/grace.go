package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/storage"
)

var graceCmd = &cobra.Command{
	Use:   "grace",
	Short: "Manage grace-period veto windows before automated actions",
}

var graceStartCmd = &cobra.Command{
	Use:   "start <issue> <trigger-label>",
	Short: "Open a veto window before the labeled automated action runs",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		issue := parseIssueArg(args[0])
		trigger := args[1]
		minutes, _ := cmd.Flags().GetInt("minutes")
		if minutes <= 0 {
			minutes = config.GetInt("grace-minutes")
		}

		entry, err := overrides.StartGracePeriod(context.Background(), issue, trigger, actor, minutes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			outputJSON(entry)
			return
		}
		fmt.Printf("Grace period open for issue %d until %s (trigger: %s)\n",
			issue, entry.ExpiresAt.Format(time.RFC3339), trigger)
	},
}

var graceStatusCmd = &cobra.Command{
	Use:   "status <issue>",
	Short: "Show the grace-period window for an issue",
	Long: `Shows the stored window, active or not. Exit status is 0 when the
window is active and 1 otherwise, so scripts can gate on it directly.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		issue := parseIssueArg(args[0])
		ctx := context.Background()

		entry, err := overrides.GetGracePeriod(ctx, issue)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				if jsonOutput {
					outputJSON(map[string]interface{}{"active": false})
				} else {
					fmt.Printf("No grace period recorded for issue %d\n", issue)
				}
				os.Exit(1)
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		active, err := overrides.IsInGracePeriod(ctx, issue)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{"active": active, "entry": entry})
		} else {
			switch {
			case active:
				green := color.New(color.FgGreen).SprintFunc()
				fmt.Printf("%s issue %d: active until %s (trigger %s by %s)\n",
					green("✓"), issue, entry.ExpiresAt.Format(time.RFC3339), entry.TriggerLabel, entry.TriggeredBy)
			case entry.Cancelled:
				fmt.Printf("issue %d: cancelled by %s\n", issue, entry.CancelledBy)
			default:
				fmt.Printf("issue %d: expired at %s\n", issue, entry.ExpiresAt.Format(time.RFC3339))
			}
		}
		if !active {
			os.Exit(1)
		}
	},
}

var graceCancelCmd = &cobra.Command{
	Use:   "cancel <issue>",
	Short: "Veto the pending automated action for an issue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		issue := parseIssueArg(args[0])

		cancelled, err := overrides.CancelGracePeriod(context.Background(), issue, actor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"cancelled": cancelled})
			return
		}
		if !cancelled {
			fmt.Fprintf(os.Stderr, "No active grace period for issue %d\n", issue)
			os.Exit(1)
		}
		fmt.Printf("Cancelled grace period for issue %d\n", issue)
	},
}

func init() {
	graceStartCmd.Flags().Int("minutes", 0, "Window length in minutes (default: grace-minutes config)")

	graceCmd.AddCommand(graceStartCmd)
	graceCmd.AddCommand(graceStatusCmd)
	graceCmd.AddCommand(graceCancelCmd)
	rootCmd.AddCommand(graceCmd)
}
