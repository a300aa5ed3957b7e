// Package retry provides the bounded exponential retry policy applied to each
// network-touching step of the publish workflow. Steps are wrapped one by one,
// never the workflow as a whole, so a transient failure on one step does not
// repeat already-successful steps.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	goretry "github.com/sethvargo/go-retry"

	pkgerrors "github.com/safliix/console-backend/pkg/errors"
)

const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultFactor     = 2.0
)

// Policy bounds retries of a single fallible operation. The zero value uses
// the defaults above with the pkg/errors retryability predicate.
type Policy struct {
	// MaxRetries is the number of re-invocations after the first attempt.
	MaxRetries int
	// BaseDelay is the wait before the first retry; subsequent waits grow by
	// Factor per attempt.
	BaseDelay time.Duration
	Factor    float64
	// Predicate decides whether a failure is worth retrying. Defaults to
	// pkgerrors.Retryable: server-class and transport failures retry, client
	// errors never do.
	Predicate func(error) bool
	// OnRetry is invoked before each re-invocation with the attempt number
	// (2 for the first retry) and the error that triggered it.
	OnRetry func(attempt int, err error)
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	} else if p.MaxRetries == 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Factor < 1 {
		p.Factor = DefaultFactor
	}
	if p.Predicate == nil {
		p.Predicate = pkgerrors.Retryable
	}
	return p
}

// NoRetry disables re-invocation while keeping the Do call shape.
var NoRetry = Policy{MaxRetries: -1}

// Do invokes op, retrying per the policy. The last error is returned once the
// retry budget is exhausted. If ctx fires while waiting between attempts, op
// is not re-invoked and the returned error carries CodeCancelled and unwraps
// to ctx.Err().
func Do(ctx context.Context, p Policy, op func(context.Context) error) error {
	p = p.withDefaults()

	attempt := 0
	var lastErr error
	backoff := goretry.WithMaxRetries(uint64(p.MaxRetries), exponential(p.BaseDelay, p.Factor))

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 && p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}
		if err := op(ctx); err != nil {
			lastErr = err
			if p.Predicate(err) {
				return goretry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return pkgerrors.Wrap(pkgerrors.CodeCancelled, err, "cancelled while waiting to retry")
	}
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// exponential yields base * factor^(attempt-1) without jitter. go-retry's
// built-in exponential is fixed at factor 2; the factor here is configurable.
func exponential(base time.Duration, factor float64) goretry.Backoff {
	attempt := 0
	return goretry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		delay := float64(base) * math.Pow(factor, float64(attempt-1))
		if delay > float64(math.MaxInt64) {
			return time.Duration(math.MaxInt64), false
		}
		return time.Duration(delay), false
	})
}
