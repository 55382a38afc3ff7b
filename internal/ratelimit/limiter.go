package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wardenhq/warden/internal/types"
	"github.com/wardenhq/warden/internal/utils"
)

// Options configures a Limiter.
type Options struct {
	// GitHubBurst is the token bucket capacity for external API calls.
	GitHubBurst int
	// GitHubRefillRate is tokens per second (e.g. 5000/hour = ~1.39/s).
	GitHubRefillRate float64
	// CostLimit is the AI spend ceiling in USD.
	CostLimit float64
	// StatePath, when set, is where SaveState/LoadState persist the warm
	// restart snapshot.
	StatePath string
}

// DefaultOptions mirrors GitHub's 5000 req/hour REST quota with a modest
// burst, and a small default budget.
func DefaultOptions() Options {
	return Options{
		GitHubBurst:      100,
		GitHubRefillRate: 5000.0 / 3600.0,
		CostLimit:        10.0,
	}
}

// Limiter is the single point through which all external-API and AI-cost
// checks flow. Construct one explicitly with New and pass it down; the
// Instance/ResetInstance pair exists for callers that need a process-wide
// default and for test harnesses.
type Limiter struct {
	github *TokenBucket
	cost   *CostTracker
	opts   Options

	startedAt time.Time

	githubRequests    atomic.Int64
	githubErrors      atomic.Int64
	githubRateLimited atomic.Int64
}

// New constructs a Limiter from options.
func New(opts Options) *Limiter {
	if opts.GitHubBurst <= 0 {
		opts.GitHubBurst = DefaultOptions().GitHubBurst
	}
	if opts.GitHubRefillRate <= 0 {
		opts.GitHubRefillRate = DefaultOptions().GitHubRefillRate
	}
	return &Limiter{
		github:    NewTokenBucket(opts.GitHubBurst, opts.GitHubRefillRate),
		cost:      NewCostTracker(opts.CostLimit),
		opts:      opts,
		startedAt: time.Now(),
	}
}

var (
	instanceMu sync.Mutex
	instance   *Limiter
)

// Instance returns the process-wide limiter, constructing it from opts on
// first call. Later calls ignore their options (first-writer-wins); the
// instance persists for the life of the process.
func Instance(opts Options) *Limiter {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		instance = New(opts)
	}
	return instance
}

// ResetInstance drops the process-wide limiter so the next Instance call
// constructs a fresh one. For controlled restarts and tests.
func ResetInstance() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = nil
}

// Options returns the options the limiter was constructed with.
func (l *Limiter) Options() Options { return l.opts }

// AcquireGitHub blocks until an API token is available or ctx is done.
// Returns a *RateLimitError on timeout; bucket state is unchanged by the
// failure.
func (l *Limiter) AcquireGitHub(ctx context.Context) error {
	if l.github.Acquire(ctx, 1) {
		l.githubRequests.Add(1)
		return nil
	}
	l.githubRateLimited.Add(1)
	return &RateLimitError{Operation: "github", RetryAfter: l.github.TimeUntilAvailable(1)}
}

// CheckGitHubAvailable is the non-blocking check: (ok, message).
func (l *Limiter) CheckGitHubAvailable() (bool, string) {
	avail := l.github.Available()
	if avail >= 1 {
		return true, fmt.Sprintf("%.1f github tokens available", avail)
	}
	return false, fmt.Sprintf("github rate limited, next token in %s",
		l.github.TimeUntilAvailable(1).Round(time.Millisecond))
}

// TrackAICost records a metered AI call against the budget. A denial is a
// *CostLimitError and records nothing.
func (l *Limiter) TrackAICost(inputTokens, outputTokens int64, model, operationName string) (float64, error) {
	return l.cost.AddOperation(inputTokens, outputTokens, model, operationName)
}

// CheckCostAvailable is the non-blocking check: (ok, message).
func (l *Limiter) CheckCostAvailable() (bool, string) {
	remaining := l.cost.RemainingBudget()
	if remaining > 0 {
		return true, fmt.Sprintf("$%.4f of budget remaining", remaining)
	}
	return false, fmt.Sprintf("AI budget exhausted ($%.4f over)", -remaining)
}

// RecordGitHubError counts a failed upstream call. The limiter only counts;
// opening a circuit breaker is the caller's policy.
func (l *Limiter) RecordGitHubError() {
	l.githubErrors.Add(1)
}

// CheckOperation verifies that operationType may proceed right now without
// consuming anything. "github" requires an available token; "cost" requires
// positive remaining budget. Unknown types are denied: the limiter fails
// closed.
func (l *Limiter) CheckOperation(operationType string) error {
	switch operationType {
	case "github":
		if ok, _ := l.CheckGitHubAvailable(); !ok {
			return &RateLimitError{Operation: "github", RetryAfter: l.github.TimeUntilAvailable(1)}
		}
		return nil
	case "cost":
		if ok, _ := l.CheckCostAvailable(); !ok {
			return &CostLimitError{
				Operation: "cost",
				Remaining: l.cost.RemainingBudget(),
				Limit:     l.cost.CostLimit(),
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown operation type %q: %w", operationType, ErrRateLimited)
	}
}

// CostTracker exposes the underlying tracker for reporting.
func (l *Limiter) CostTracker() *CostTracker { return l.cost }

// Statistics returns a diagnostic snapshot.
func (l *Limiter) Statistics() types.LimiterStatistics {
	return types.LimiterStatistics{
		RuntimeSeconds:    time.Since(l.startedAt).Seconds(),
		GitHubRequests:    l.githubRequests.Load(),
		GitHubErrors:      l.githubErrors.Load(),
		GitHubRateLimited: l.githubRateLimited.Load(),
		GitHubTokensAvail: l.github.Available(),
		TotalCost:         l.cost.TotalCost(),
		CostLimit:         l.cost.CostLimit(),
		RemainingBudget:   l.cost.RemainingBudget(),
		TrackedOperations: len(l.cost.Operations()),
	}
}

// Report formats Statistics plus the cost ledger as human-readable text.
func (l *Limiter) Report() string {
	s := l.Statistics()
	var b strings.Builder
	fmt.Fprintf(&b, "rate limiter report (up %.0fs)\n", s.RuntimeSeconds)
	fmt.Fprintf(&b, "  github: %d requests, %d errors, %d rate-limited, %.1f tokens available\n",
		s.GitHubRequests, s.GitHubErrors, s.GitHubRateLimited, s.GitHubTokensAvail)
	b.WriteString(l.cost.UsageReport())
	return b.String()
}

// SaveState writes the warm-restart snapshot of the github bucket so token
// headroom survives process restarts. Atomic temp+rename write.
func (l *Limiter) SaveState(path string) error {
	if path == "" {
		path = l.opts.StatePath
	}
	if path == "" {
		return fmt.Errorf("no state path configured")
	}
	data, err := json.MarshalIndent(l.github.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bucket state: %w", err)
	}
	return utils.AtomicWriteFile(path, data, 0o644)
}

// LoadState restores the github bucket from a warm-restart snapshot. A
// missing or corrupted file leaves the bucket at its constructed state.
func (l *Limiter) LoadState(path string) error {
	if path == "" {
		path = l.opts.StatePath
	}
	if path == "" {
		return fmt.Errorf("no state path configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read bucket state: %w", err)
	}
	var state types.BucketState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil // corrupted snapshot degrades to the fresh bucket
	}
	l.github.Restore(state)
	return nil
}
