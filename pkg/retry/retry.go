package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a bounded retry with a fixed delay between attempts.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Default is the policy used for language model calls: 3 attempts, 1s apart.
var Default = Policy{Attempts: 3, Delay: time.Second}

// Permanent marks err as not worth retrying. Do returns it as is.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs fn until it succeeds, returns a permanent error, or the policy runs
// out of attempts.
func (p Policy) Do(ctx context.Context, operationName string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	permanent := false
	err := backoff.RetryNotify(
		func() error {
			attempt++
			err := fn()
			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				permanent = true
			}
			return err
		},
		b,
		func(err error, wait time.Duration) {
			log.Printf("[RETRY] %s failed (attempt %d/%d): %v, retrying in %v",
				operationName, attempt, attempts, err, wait)
		},
	)
	if err == nil {
		return nil
	}

	if permanent {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && attempt < attempts {
		return fmt.Errorf("%s interrupted after %d attempts: %w", operationName, attempt, ctxErr)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempt, err)
}
