package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/types"
)

var lifecycleCmd = &cobra.Command{
	Use:   "lifecycle",
	Short: "Inspect and drive issue lifecycle state machines",
}

// parseIssueArg converts an issue-number argument, exiting on garbage input.
func parseIssueArg(arg string) int {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		fmt.Fprintf(os.Stderr, "Error: invalid issue number %q\n", arg)
		os.Exit(1)
	}
	return n
}

func printLifecycle(lc *types.IssueLifecycle) {
	if jsonOutput {
		outputJSON(lc)
		return
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("%s#%d: %s\n", lc.Repo, lc.IssueNumber, cyan(string(lc.CurrentState)))
	if lc.IsLocked() {
		fmt.Printf("  locked by %s since %s\n", lc.LockedBy, lc.LockedAt.Format("2006-01-02 15:04:05"))
	}
	if lc.SpecID != "" {
		fmt.Printf("  spec: %s\n", lc.SpecID)
	}
	if lc.PRNumber != nil {
		fmt.Printf("  pr: #%d\n", *lc.PRNumber)
	}
	fmt.Printf("  version: %d, transitions: %d\n", lc.Version, len(lc.Transitions))
	for _, tr := range lc.Transitions {
		line := fmt.Sprintf("  %s  %s -> %s  (%s)", tr.Timestamp.Format("2006-01-02 15:04:05"), tr.FromState, tr.ToState, tr.Actor)
		if tr.Forced {
			line += " [forced]"
		}
		if tr.Reason != "" {
			line += ": " + tr.Reason
		}
		fmt.Println(line)
	}
}

var lifecycleShowCmd = &cobra.Command{
	Use:   "show <issue>",
	Short: "Show an issue's lifecycle state and transition history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		requireRepo()
		issue := parseIssueArg(args[0])

		lc, err := lifecycles.Get(context.Background(), repo, issue)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printLifecycle(lc)
	},
}

var lifecycleTransitionCmd = &cobra.Command{
	Use:   "transition <issue> <state>",
	Short: "Transition an issue to a new lifecycle state",
	Long: `Transitions an issue along the lifecycle state machine. Invalid
transitions are refused and reported; --force bypasses the state machine
and records a forced transition in the audit trail.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		requireRepo()
		issue := parseIssueArg(args[0])
		target := types.State(args[1])
		if !target.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: unknown state %q\n", args[1])
			os.Exit(1)
		}
		reason, _ := cmd.Flags().GetString("reason")
		force, _ := cmd.Flags().GetBool("force")
		ctx := context.Background()

		if force {
			lc, err := lifecycles.ForceTransition(ctx, repo, issue, target, actor, reason, nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if jsonOutput {
				outputJSON(lc)
			} else {
				yellow := color.New(color.FgYellow).SprintFunc()
				fmt.Printf("%s forced %s#%d to %s\n", yellow("⚠"), repo, issue, target)
			}
			return
		}

		result, err := lifecycles.Transition(ctx, repo, issue, target, actor, reason, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if result.HasConflict {
			if jsonOutput {
				outputJSON(result)
			} else {
				red := color.New(color.FgRed).SprintFunc()
				fmt.Fprintf(os.Stderr, "%s %s\n", red("✗"), result.Message)
				if result.ResolutionHint != "" {
					fmt.Fprintf(os.Stderr, "Hint: %s\n", result.ResolutionHint)
				}
			}
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(result)
		} else {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s %s#%d -> %s\n", green("✓"), repo, issue, target)
		}
	},
}

var lifecycleLockCmd = &cobra.Command{
	Use:   "lock <issue>",
	Short: "Acquire the cooperative processing lock on an issue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		requireRepo()
		issue := parseIssueArg(args[0])
		holder, _ := cmd.Flags().GetString("holder")
		if holder == "" {
			holder = actor
		}

		acquired, err := lifecycles.AcquireLock(context.Background(), repo, issue, holder)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"acquired": acquired, "holder": holder})
			return
		}
		if !acquired {
			fmt.Fprintf(os.Stderr, "Lock on %s#%d is held by another component\n", repo, issue)
			os.Exit(1)
		}
		fmt.Printf("Locked %s#%d as %s\n", repo, issue, holder)
	},
}

var lifecycleUnlockCmd = &cobra.Command{
	Use:   "unlock <issue>",
	Short: "Release the cooperative processing lock on an issue",
	Run: func(cmd *cobra.Command, args []string) {
		requireRepo()
		if len(args) != 1 {
			fmt.Fprintf(os.Stderr, "Error: expected exactly one issue number\n")
			os.Exit(1)
		}
		issue := parseIssueArg(args[0])
		holder, _ := cmd.Flags().GetString("holder")
		if holder == "" {
			holder = actor
		}
		force, _ := cmd.Flags().GetBool("force")
		ctx := context.Background()

		if force {
			// Clear the lock regardless of holder. Used to recover from a
			// crashed component that never released.
			lc, err := lifecycles.Get(ctx, repo, issue)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			holder = lc.LockedBy
			if holder == "" {
				fmt.Printf("%s#%d is not locked\n", repo, issue)
				return
			}
		}

		released, err := lifecycles.ReleaseLock(ctx, repo, issue, holder)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if released && force {
			// Forced unlocks are audited like any other override.
			reason, _ := cmd.Flags().GetString("reason")
			rec := &types.OverrideRecord{
				ID:           uuid.NewString(),
				OverrideType: types.OverrideForceUnlock,
				IssueNumber:  issue,
				Repo:         repo,
				Actor:        actor,
				Reason:       reason,
				CreatedAt:    time.Now().UTC(),
				Metadata:     map[string]string{"previous_holder": holder},
			}
			if err := store.AppendOverride(ctx, rec); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to record forced unlock: %v\n", err)
			}
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"released": released})
			return
		}
		if !released {
			fmt.Fprintf(os.Stderr, "No lock held by %s on %s#%d\n", holder, repo, issue)
			os.Exit(1)
		}
		fmt.Printf("Unlocked %s#%d\n", repo, issue)
	},
}

var lifecycleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked issues, optionally filtered by state",
	Run: func(cmd *cobra.Command, args []string) {
		requireRepo()
		stateFilter, _ := cmd.Flags().GetString("state")
		ctx := context.Background()

		var (
			items []*types.IssueLifecycle
			err   error
		)
		if stateFilter != "" {
			st := types.State(stateFilter)
			if !st.IsValid() {
				fmt.Fprintf(os.Stderr, "Error: unknown state %q\n", stateFilter)
				os.Exit(1)
			}
			items, err = lifecycles.GetAllInState(ctx, repo, st)
		} else {
			items, err = store.ListLifecycles(ctx, repo)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		sort.Slice(items, func(i, j int) bool { return items[i].IssueNumber < items[j].IssueNumber })

		if jsonOutput {
			if items == nil {
				items = []*types.IssueLifecycle{}
			}
			outputJSON(items)
			return
		}
		if len(items) == 0 {
			fmt.Println("No tracked issues")
			return
		}
		for _, lc := range items {
			line := fmt.Sprintf("#%-6d %s", lc.IssueNumber, lc.CurrentState)
			if lc.IsLocked() {
				line += fmt.Sprintf(" [locked: %s]", lc.LockedBy)
			}
			fmt.Println(line)
		}
	},
}

var lifecycleSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize lifecycle states across a repository",
	Run: func(cmd *cobra.Command, args []string) {
		requireRepo()
		summary, err := lifecycles.GetSummary(context.Background(), repo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(summary)
			return
		}

		fmt.Printf("%s: %d tracked issues (%d locked, %d terminal, %d auto-fixable)\n",
			repo, summary.Total, summary.Locked, summary.Terminal, summary.AutoFixable)

		states := make([]string, 0, len(summary.ByState))
		for st := range summary.ByState {
			states = append(states, string(st))
		}
		sort.Strings(states)
		for _, st := range states {
			fmt.Printf("  %-18s %d\n", st, summary.ByState[types.State(st)])
		}
	},
}

func init() {
	lifecycleTransitionCmd.Flags().StringP("reason", "r", "", "Reason for the transition")
	lifecycleTransitionCmd.Flags().Bool("force", false, "Bypass the state machine (audited)")
	lifecycleLockCmd.Flags().String("holder", "", "Component name holding the lock (default: actor)")
	lifecycleUnlockCmd.Flags().String("holder", "", "Component name releasing the lock (default: actor)")
	lifecycleUnlockCmd.Flags().Bool("force", false, "Release the lock regardless of holder")
	lifecycleUnlockCmd.Flags().StringP("reason", "r", "", "Reason for a forced unlock")
	lifecycleListCmd.Flags().String("state", "", "Only show issues in this state")

	lifecycleCmd.AddCommand(lifecycleShowCmd)
	lifecycleCmd.AddCommand(lifecycleTransitionCmd)
	lifecycleCmd.AddCommand(lifecycleLockCmd)
	lifecycleCmd.AddCommand(lifecycleUnlockCmd)
	lifecycleCmd.AddCommand(lifecycleListCmd)
	lifecycleCmd.AddCommand(lifecycleSummaryCmd)
	rootCmd.AddCommand(lifecycleCmd)
}
