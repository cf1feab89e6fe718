// Package flow implements the composable, named-step execution pipeline
// used to drive the client's initialization handshake: each step gets its
// own timeout and retry
// policy, and the whole flow is bounded by an overall deadline.
package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy configures exponential backoff for a retryable step.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy matches the teacher's connection-retry tuning.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:  3,
	InitialDelay: 250 * time.Millisecond,
	MaxDelay:     5 * time.Second,
	Multiplier:   2.0,
}

func (p RetryPolicy) backoffFor() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.MaxInterval = p.MaxDelay
	eb.Multiplier = p.Multiplier
	eb.MaxElapsedTime = 0 // bounded by MaxAttempts / the flow's own context instead
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithMaxRetries(eb, uint64(attempts-1))
}

// Step is one named unit of work in a Flow.
type Step struct {
	Name      string
	Timeout   time.Duration // 0 means no per-step timeout beyond the flow's own
	Retryable bool
	Policy    RetryPolicy // used only when Retryable; zero value uses DefaultRetryPolicy
	Run       func(ctx context.Context) error
}

// Result records one step's outcome, in execution order.
type Result struct {
	Name     string
	Attempts int
	Duration time.Duration
	Err      error
}

// Flow is an ordered sequence of steps sharing an overall deadline. Steps
// run strictly in order; the first to fail (after exhausting its own
// retries, if retryable) stops the flow.
type Flow struct {
	Name    string
	Steps   []Step
	Timeout time.Duration // 0 means unbounded
}

// StepError wraps the step name and underlying cause of a flow's failure.
type StepError struct {
	Flow string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("flow %s: step %q failed: %v", e.Flow, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Run executes every step in order, returning the per-step results
// gathered so far and the first error encountered (nil if every step
// succeeded).
func (f *Flow) Run(ctx context.Context) ([]Result, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	results := make([]Result, 0, len(f.Steps))
	for _, step := range f.Steps {
		res, err := runStep(ctx, f.Name, step)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func runStep(ctx context.Context, flowName string, step Step) (Result, error) {
	start := time.Now()
	attempts := 0

	attempt := func() error {
		attempts++
		stepCtx := ctx
		var cancel context.CancelFunc
		if step.Timeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
			defer cancel()
		}
		if err := step.Run(stepCtx); err != nil {
			if stepCtx.Err() == context.DeadlineExceeded && ctx.Err() != context.DeadlineExceeded {
				return fmt.Errorf("step %q timed out after %s: %w", step.Name, step.Timeout, err)
			}
			return err
		}
		return nil
	}

	var err error
	if step.Retryable {
		policy := step.Policy
		if policy == (RetryPolicy{}) {
			policy = DefaultRetryPolicy
		}
		err = backoff.Retry(attempt, backoff.WithContext(policy.backoffFor(), ctx))
	} else {
		err = attempt()
	}

	res := Result{Name: step.Name, Attempts: attempts, Duration: time.Since(start)}
	if err != nil {
		res.Err = err
		return res, &StepError{Flow: flowName, Step: step.Name, Err: err}
	}
	return res, nil
}
