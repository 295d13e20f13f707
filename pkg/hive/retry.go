package hive

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// backoffPolicy computes backoff(attempt) = base * multiplier^attempt,
// capped at max, using cenkalti/backoff/v4's ExponentialBackOff as the
// interval generator rather than re-deriving the exponential series by
// hand. Randomization is disabled so the interval is a pure, deterministic
// function of attempt.
type backoffPolicy struct {
	base       time.Duration
	multiplier float64
	max        time.Duration
}

func newBackoffPolicy(base time.Duration, multiplier float64, max time.Duration) backoffPolicy {
	if multiplier < 1.0 {
		multiplier = 1.0
	}
	return backoffPolicy{base: base, multiplier: multiplier, max: max}
}

// delay returns the backoff interval for the given zero-based attempt
// number. It is deliberately stateless across calls (new ExponentialBackOff
// per call) since attempts for a single task run sequentially on one
// worker goroutine and may be interleaved, across tasks, with other
// attempt numbers on other workers.
func (p backoffPolicy) delay(attempt uint32) time.Duration {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.base
	eb.Multiplier = p.multiplier
	eb.MaxInterval = p.max
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()

	var d time.Duration
	for i := uint32(0); i <= attempt; i++ {
		d = eb.NextBackOff()
	}
	if d > p.max {
		d = p.max
	}
	return d
}
