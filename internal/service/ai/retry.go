package ai

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/markdave123/contexta/backend/internal/service/prompt"
)

// RetryPolicy bounds how often a failed model call is repeated. The policy
// lives outside the reply pipeline so retry behavior stays visible and
// testable instead of being buried in the model client.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the upstream provider guidance: three attempts
// with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
}

type retryingCompleter struct {
	next   Completer
	policy RetryPolicy
}

// WithRetry wraps a completer with the given policy. A MaxAttempts below one
// behaves as a single attempt.
func WithRetry(next Completer, policy RetryPolicy) Completer {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &retryingCompleter{next: next, policy: policy}
}

func (r *retryingCompleter) Complete(ctx context.Context, pc prompt.Context) (string, error) {
	var lastErr error
	delay := r.policy.BaseDelay

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		text, err := r.next.Complete(ctx, pc)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if attempt == r.policy.MaxAttempts {
			break
		}
		log.Printf("[ai] completion attempt %d/%d failed: %v", attempt, r.policy.MaxAttempts, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if r.policy.MaxDelay > 0 && delay > r.policy.MaxDelay {
			delay = r.policy.MaxDelay
		}
	}

	return "", fmt.Errorf("completion failed after %d attempts: %w", r.policy.MaxAttempts, lastErr)
}
