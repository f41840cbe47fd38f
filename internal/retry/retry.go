// Package retry decides whether a failed stage execution is re-enqueued
// and how long to wait before it becomes visible again.
package retry

import (
	"time"

	"clipforge/internal/services"
)

// Policy bounds the retry behavior of a single stage.
type Policy struct {
	// MaxAttempts is the number of retries after the first failure. A
	// stage with MaxAttempts 2 executes at most three times.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff: attempt n waits
	// BaseDelay * 2^n.
	BaseDelay time.Duration
}

// Decision is the outcome for one failure.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// DefaultPolicies returns the per-stage retry budgets. Stages dominated by
// flaky external services get the longer backoff seed.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		"ingest":     {MaxAttempts: 3, BaseDelay: 2 * time.Second},
		"download":   {MaxAttempts: 3, BaseDelay: 60 * time.Second},
		"normalize":  {MaxAttempts: 2, BaseDelay: 2 * time.Second},
		"transcribe": {MaxAttempts: 2, BaseDelay: 60 * time.Second},
		"analyze":    {MaxAttempts: 3, BaseDelay: 60 * time.Second},
		"classify":   {MaxAttempts: 2, BaseDelay: 2 * time.Second},
		"select":     {MaxAttempts: 2, BaseDelay: 2 * time.Second},
		"reframe":    {MaxAttempts: 2, BaseDelay: 2 * time.Second},
		"score":      {MaxAttempts: 3, BaseDelay: 60 * time.Second},
		"caption":    {MaxAttempts: 2, BaseDelay: 2 * time.Second},
		"clip":       {MaxAttempts: 2, BaseDelay: 2 * time.Second},
		"post":       {MaxAttempts: 3, BaseDelay: 60 * time.Second},
	}
}

// Controller maps failures to retry decisions.
type Controller struct {
	policies map[string]Policy
	fallback Policy
}

// NewController builds a controller from per-stage policies. Stages without
// an entry use a conservative fallback.
func NewController(policies map[string]Policy) *Controller {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Controller{
		policies: policies,
		fallback: Policy{MaxAttempts: 2, BaseDelay: 2 * time.Second},
	}
}

// Decide returns whether the stage should run again for a job. attempt is
// the zero-based count of failures already seen, so the first failure
// arrives as attempt 0 and the retry it schedules carries attempt 1.
// Non-retryable errors and exhausted budgets are terminal.
func (c *Controller) Decide(stage string, attempt int, err error) Decision {
	if !services.Retryable(err) {
		return Decision{}
	}
	policy, ok := c.policies[stage]
	if !ok {
		policy = c.fallback
	}
	if attempt >= policy.MaxAttempts {
		return Decision{}
	}
	return Decision{Retry: true, Delay: policy.BaseDelay << uint(attempt)}
}
