package stream

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// Decision tells a Subscription how to proceed after a connection failure.
type Decision int

const (
	// Continue reconnects after the next backoff delay.
	Continue Decision = iota
	// Abort terminates the subscription with the error.
	Abort
)

// ErrorHandler inspects a connection failure and decides whether the
// subscription should keep trying.
type ErrorHandler func(err error) Decision

// ContinueOnError is the default ErrorHandler.
func ContinueOnError(error) Decision {
	return Continue
}

// BackoffFactory builds the reconnection delays of one outage. A new backoff
// is built every time the stream is established again.
type BackoffFactory func() retry.Backoff

// ConstantBackoff waits d before every attempt. maxRetries of 0 retries
// forever.
func ConstantBackoff(d time.Duration, maxRetries uint64) BackoffFactory {
	if d <= 0 {
		d = defaultRetryDelay
	}
	return func() retry.Backoff {
		return withMaxRetries(maxRetries, retry.NewConstant(d))
	}
}

// ExponentialBackoff doubles the delay from base up to maxDelay and adds
// ±30% jitter. maxRetries of 0 retries forever.
func ExponentialBackoff(base, maxDelay time.Duration, maxRetries uint64) BackoffFactory {
	if base <= 0 {
		base = time.Second
	}
	return func() retry.Backoff {
		b := retry.NewExponential(base)
		if maxDelay > 0 {
			b = retry.WithCappedDuration(maxDelay, b)
		}
		return withMaxRetries(maxRetries, retry.WithJitterPercent(30, b))
	}
}

func withMaxRetries(n uint64, b retry.Backoff) retry.Backoff {
	if n == 0 {
		return b
	}
	return retry.WithMaxRetries(n, b)
}
