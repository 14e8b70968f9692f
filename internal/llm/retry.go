package llm

import (
	"time"

	"github.com/bimmerbailey/eksight/internal/config"
)

// RetryPolicy bounds automatic retries per failure kind. Ceilings are
// tracked independently, so a throttle retry does not consume the single
// transport retry and vice versa.
type RetryPolicy struct {
	// ThrottleAttempts is the total attempt ceiling for throttled calls
	ThrottleAttempts int

	// BackoffBase is the first throttle delay; each further delay doubles
	BackoffBase time.Duration
}

// DefaultRetryPolicy returns the standard policy: three total attempts for
// throttling with exponential backoff from one second, one retry for
// transport failures, one halved-context retry for oversized prompts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		ThrottleAttempts: 3,
		BackoffBase:      time.Second,
	}
}

// Decision is the policy's verdict after one failed attempt.
type Decision struct {
	// Retry indicates another attempt should be made
	Retry bool

	// Delay to wait before the next attempt
	Delay time.Duration

	// HalveContext indicates the prompt must be rebuilt at half the
	// record count before retrying
	HalveContext bool
}

// attemptCounts tracks failures seen so far, per retryable kind.
type attemptCounts struct {
	throttled int
	transport int
	oversized int
}

func (c *attemptCounts) record(kind config.FailureKind) {
	switch kind {
	case config.FailThrottled:
		c.throttled++
	case config.FailTransport:
		c.transport++
	case config.FailInputTooLarge:
		c.oversized++
	}
}

// Decide maps the latest failure kind and the counts so far to a verdict.
// Counts include the failure being decided. All kinds not listed are
// terminal: access denied, missing clusters, and the like never resolve
// by retrying.
func (p RetryPolicy) Decide(kind config.FailureKind, counts attemptCounts) Decision {
	switch kind {
	case config.FailThrottled:
		if counts.throttled >= p.ThrottleAttempts {
			return Decision{}
		}
		return Decision{
			Retry: true,
			Delay: p.BackoffBase << (counts.throttled - 1),
		}
	case config.FailTransport:
		if counts.transport > 1 {
			return Decision{}
		}
		return Decision{Retry: true}
	case config.FailInputTooLarge:
		if counts.oversized > 1 {
			return Decision{}
		}
		return Decision{Retry: true, HalveContext: true}
	default:
		return Decision{}
	}
}
