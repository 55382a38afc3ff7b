// Package aiclient wraps the Anthropic API behind the rate limiter's cost
// budget: every call checks headroom first and records its actual token
// usage against the budget afterwards.
package aiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"

	"github.com/wardenhq/warden/internal/ratelimit"
)

// errAPIKeyRequired is returned when an API key is needed but not provided.
var errAPIKeyRequired = errors.New("API key required")

// DefaultModel is used when callers do not name one.
const DefaultModel = "claude-3-5-haiku-20241022"

// Client is a metered Anthropic client. All spend flows through the limiter.
type Client struct {
	client    anthropic.Client
	model     anthropic.Model
	limiter   *ratelimit.Limiter
	maxTokens int64
	retryCfg  ratelimit.RetryConfig
}

// New creates a metered client. Env var ANTHROPIC_API_KEY takes precedence
// over the explicit apiKey. model may be empty.
func New(apiKey, model string, limiter *ratelimit.Limiter) (*Client, error) {
	envKey := os.Getenv("ANTHROPIC_API_KEY")
	if envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY environment variable or provide via config", errAPIKeyRequired)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		limiter:   limiter,
		maxTokens: 1024,
		retryCfg:  ratelimit.DefaultRetryConfig(),
	}, nil
}

// Complete sends one prompt and returns the text response. It refuses to
// call out when the budget is exhausted, retries transient API failures
// with capped exponential backoff, and records the response's actual token
// usage as operationName in the cost ledger.
func (c *Client) Complete(ctx context.Context, operationName, prompt string) (string, error) {
	if err := c.limiter.CheckOperation("cost"); err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var message *anthropic.Message
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryCfg.BaseDelay
	bo.MaxInterval = c.retryCfg.MaxRetryDelay
	bo.MaxElapsedTime = 0
	err := backoff.Retry(func() error {
		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		message = resp
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, c.retryCfg.MaxRetries), ctx))
	if err != nil {
		return "", fmt.Errorf("anthropic call failed: %w", err)
	}

	// Record actual usage. A budget rejection here means the response
	// arrived but blew the ceiling; surface it so the caller aborts the
	// follow-up work.
	if _, err := c.limiter.TrackAICost(message.Usage.InputTokens, message.Usage.OutputTokens, string(c.model), operationName); err != nil {
		return "", err
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("unexpected response format: no content blocks")
	}
	content := message.Content[0]
	if content.Type != "text" {
		return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
	}
	return content.Text, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		statusCode := apiErr.StatusCode
		return statusCode == 429 || statusCode >= 500
	}

	return false
}
