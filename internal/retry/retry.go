package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"govcomms/domain"
)

// Policy bounds retries of transient fetch failures. Fetchers receive it as
// an explicit value so tests can inject a zero-delay policy.
type Policy struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// Default is the crawler's historical budget: three attempts, five second
// initial backoff.
var Default = Policy{
	MaxAttempts: 3,
	InitialWait: 5 * time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// None performs a single attempt with no waiting.
var None = Policy{MaxAttempts: 1}

// Do runs f until it succeeds, fails with a non-transient error, or the
// attempt budget is spent. Waits double between attempts up to MaxWait.
// Only errors marked domain.ErrTransientFetch are retried.
func Do(ctx context.Context, p Policy, f func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	wait := p.InitialWait

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = f(ctx)
		if err == nil || !errors.Is(err, domain.ErrTransientFetch) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		sleep := wait
		if p.Jitter {
			sleep = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if sleep > p.MaxWait {
			sleep = p.MaxWait
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		wait *= 2
		if wait > p.MaxWait {
			wait = p.MaxWait
		}
	}
	return err
}
