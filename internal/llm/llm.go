// Package llm provides the inference client: a provider abstraction over
// model backends plus the bounded retry policy that wraps every question.
//
// Providers classify their backend errors into the failure taxonomy
// (config.Failure); the Client decides, per kind, whether and how to retry.
// The split keeps attempt ceilings and backoff intervals testable apart from
// any real backend.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bimmerbailey/eksight/internal/config"
)

// Provider defines the interface for model backends.
// Implementations must be safe for concurrent use and must return
// *config.Failure errors so the client can apply its retry policy.
type Provider interface {
	// Invoke sends messages and returns the complete response.
	Invoke(ctx context.Context, messages []Message, opts *InvokeOptions) (*Response, error)

	// Heartbeat checks if the backend is reachable. Backends without a
	// cheap health endpoint return nil and fail at request time instead.
	Heartbeat(ctx context.Context) error
}

// Message represents a single message in a conversation.
type Message struct {
	// Role identifies the message sender: "system" or "user"
	Role string

	// Content is the message text
	Content string
}

// InvokeOptions configures an invocation. A nil value uses provider defaults.
type InvokeOptions struct {
	// Model overrides the provider's default model
	Model string

	// Temperature controls randomness; log analysis wants it low
	Temperature float32

	// MaxAnswerTokens is the output-length ceiling passed to the backend
	MaxAnswerTokens int
}

// Response is a complete backend response.
type Response struct {
	Content   string
	Model     string
	TokensIn  int
	TokensOut int
}

// Result is the outcome of one question: either an answer or a typed
// failure, never both.
type Result struct {
	Answer    string
	Model     string
	TokensIn  int
	TokensOut int

	Failure *config.Failure
}

// OK reports whether the result carries an answer.
func (r Result) OK() bool { return r.Failure == nil }

// AskRequest is one question against a prepared context.
type AskRequest struct {
	Messages []Message

	// Reduced rebuilds the messages from a halved record count. It backs
	// the single automatic retry after an input-too-large failure; nil
	// disables that retry.
	Reduced func() []Message

	Options *InvokeOptions
}

// Client wraps a Provider with the per-question timeout and the bounded
// retry policy.
type Client struct {
	provider Provider
	policy   RetryPolicy
	timeout  time.Duration
	logger   *slog.Logger
}

// DefaultQuestionTimeout bounds one question end to end, including retries.
// Generous enough for a single large-context call.
const DefaultQuestionTimeout = 60 * time.Second

// NewClient creates an inference client. A non-positive timeout uses
// DefaultQuestionTimeout.
func NewClient(provider Provider, policy RetryPolicy, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultQuestionTimeout
	}
	return &Client{provider: provider, policy: policy, timeout: timeout, logger: logger}
}

// Ask runs one question to completion: answer or terminal failure. Retries
// follow the policy; the per-question timeout covers the whole attempt
// sequence, and cancellation is checked before every attempt. No partial
// answer is ever returned.
func (c *Client) Ask(ctx context.Context, req AskRequest) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := req.Messages
	var counts attemptCounts

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Failure: timeoutFailure(err)}
		}

		resp, err := c.provider.Invoke(ctx, messages, req.Options)
		if err == nil {
			c.logger.Debug("question answered",
				"attempt", attempt,
				"model", resp.Model,
				"tokens_in", resp.TokensIn,
				"tokens_out", resp.TokensOut)
			return Result{
				Answer:    resp.Content,
				Model:     resp.Model,
				TokensIn:  resp.TokensIn,
				TokensOut: resp.TokensOut,
			}
		}

		if ctx.Err() != nil {
			return Result{Failure: timeoutFailure(ctx.Err())}
		}

		failure := config.FailureOf(err, config.FailUnknown)
		counts.record(failure.Kind)

		decision := c.policy.Decide(failure.Kind, counts)
		if !decision.Retry {
			c.logger.Debug("question failed", "attempt", attempt, "kind", failure.Kind)
			return Result{Failure: failure}
		}

		if decision.HalveContext {
			if req.Reduced == nil {
				return Result{Failure: failure}
			}
			messages = req.Reduced()
			c.logger.Info("prompt too large, retrying with halved context", "attempt", attempt)
		} else {
			c.logger.Info("retrying question",
				"attempt", attempt,
				"kind", failure.Kind,
				"delay", decision.Delay)
		}

		if decision.Delay > 0 {
			select {
			case <-time.After(decision.Delay):
			case <-ctx.Done():
				return Result{Failure: timeoutFailure(ctx.Err())}
			}
		}
	}
}

func timeoutFailure(err error) *config.Failure {
	if errors.Is(err, context.Canceled) {
		return config.NewFailure(config.FailTimeout, "question canceled")
	}
	return config.NewFailure(config.FailTimeout, "question abandoned after timeout: %v", err)
}
