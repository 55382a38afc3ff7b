package ratelimit

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wardenhq/warden/internal/types"
)

// modelPrice is USD per million tokens.
type modelPrice struct {
	input  float64
	output float64
}

// modelPricing maps Anthropic model names to their per-million-token prices.
// Unknown models fall back to defaultPrice, which is deliberately the most
// expensive tier so a typo in a model name can never under-count spend.
var modelPricing = map[string]modelPrice{
	"claude-sonnet-4-5-20250929": {input: 3.0, output: 15.0},
	"claude-sonnet-4-20250514":   {input: 3.0, output: 15.0},
	"claude-opus-4-1-20250805":   {input: 15.0, output: 75.0},
	"claude-opus-4-20250514":     {input: 15.0, output: 75.0},
	"claude-haiku-4-5-20251001":  {input: 1.0, output: 5.0},
	"claude-3-5-haiku-20241022":  {input: 0.80, output: 4.0},
}

var defaultPrice = modelPrice{input: 15.0, output: 75.0}

// priceFor resolves a model name to its price. A dated or suffixed release
// of a known model keeps that model's pricing (longest table key that
// prefixes the name wins, so the lookup is deterministic). Anything else
// gets defaultPrice: an ambiguous name must never price below the most
// expensive tier.
func priceFor(model string) modelPrice {
	if p, ok := modelPricing[model]; ok {
		return p
	}
	best := ""
	for name := range modelPricing {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return modelPricing[best]
	}
	return defaultPrice
}

// CostTracker enforces a hard ceiling on cumulative AI spend and keeps an
// itemized, append-only ledger of metered operations.
type CostTracker struct {
	mu         sync.Mutex
	costLimit  float64
	totalCost  float64
	operations []types.CostOperation
}

// NewCostTracker creates a tracker with the given budget ceiling in USD.
func NewCostTracker(costLimit float64) *CostTracker {
	return &CostTracker{costLimit: costLimit}
}

// CalculateCost prices an operation without recording it.
func (c *CostTracker) CalculateCost(inputTokens, outputTokens int64, model string) float64 {
	p := priceFor(model)
	return float64(inputTokens)/1e6*p.input + float64(outputTokens)/1e6*p.output
}

// AddOperation records one metered AI call. If the cost would push the total
// past the budget ceiling it returns a *CostLimitError and records nothing.
func (c *CostTracker) AddOperation(inputTokens, outputTokens int64, model, operationName string) (float64, error) {
	cost := c.CalculateCost(inputTokens, outputTokens, model)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.totalCost+cost > c.costLimit {
		return 0, &CostLimitError{
			Operation: operationName,
			Cost:      cost,
			Remaining: c.costLimit - c.totalCost,
			Limit:     c.costLimit,
		}
	}

	c.operations = append(c.operations, types.CostOperation{
		OperationName: operationName,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		Cost:          cost,
		Timestamp:     time.Now().UTC(),
		Model:         model,
	})
	c.totalCost += cost
	return cost, nil
}

// TotalCost returns the running spend total.
func (c *CostTracker) TotalCost() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalCost
}

// RemainingBudget returns limit minus spend; zero or negative means the
// budget is exhausted.
func (c *CostTracker) RemainingBudget() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.costLimit - c.totalCost
}

// CostLimit returns the configured ceiling.
func (c *CostTracker) CostLimit() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.costLimit
}

// Operations returns a copy of the ledger.
func (c *CostTracker) Operations() []types.CostOperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.CostOperation, len(c.operations))
	copy(out, c.operations)
	return out
}

// UsageReport formats the total, budget, and per-operation breakdown as
// human-readable text.
func (c *CostTracker) UsageReport() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "AI cost usage: $%.4f of $%.2f budget ($%.4f remaining)\n",
		c.totalCost, c.costLimit, c.costLimit-c.totalCost)
	if len(c.operations) == 0 {
		b.WriteString("  no operations recorded\n")
		return b.String()
	}
	for _, op := range c.operations {
		fmt.Fprintf(&b, "  %s  %-30s %s  in=%d out=%d  $%.4f\n",
			op.Timestamp.Format("2006-01-02 15:04:05"),
			op.OperationName, op.Model, op.InputTokens, op.OutputTokens, op.Cost)
	}
	return b.String()
}
