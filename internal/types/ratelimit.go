package types

import "time"

// BucketState is the warm-restart snapshot of a token bucket, written so
// rate-limit headroom survives process restarts.
type BucketState struct {
	AvailableTokens float64 `json:"available_tokens"`
	LastRefillUnix  float64 `json:"last_refill_time"`
}

// CostOperation is one metered AI call in the budget ledger.
type CostOperation struct {
	OperationName string    `json:"operation_name"`
	InputTokens   int64     `json:"input_tokens"`
	OutputTokens  int64     `json:"output_tokens"`
	Cost          float64   `json:"cost"`
	Timestamp     time.Time `json:"timestamp"`
	Model         string    `json:"model"`
}

// LimiterStatistics is the diagnostic snapshot reported by the rate limiter.
type LimiterStatistics struct {
	RuntimeSeconds    float64 `json:"runtime_seconds"`
	GitHubRequests    int64   `json:"github_requests"`
	GitHubErrors      int64   `json:"github_errors"`
	GitHubRateLimited int64   `json:"github_rate_limited"`
	GitHubTokensAvail float64 `json:"github_tokens_available"`
	TotalCost         float64 `json:"total_cost"`
	CostLimit         float64 `json:"cost_limit"`
	RemainingBudget   float64 `json:"remaining_budget"`
	TrackedOperations int     `json:"tracked_operations"`
}
