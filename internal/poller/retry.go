package poller

import "time"

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
)

// RetryPolicy bounds how often and how soon a failed cycle is retried.
//
// The delay grows linearly with the number of retries already made:
// BaseDelay, 2*BaseDelay, 3*BaseDelay, ... There is no jitter.
type RetryPolicy struct {
	// MaxRetries is the retry budget per cycle. Zero disables retries.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
}

// DefaultRetryPolicy returns the 3 retries at 5s/10s/15s policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultRetryDelay}
}

// Delay returns the wait before the retry that follows retryCount
// previous retries.
func (p RetryPolicy) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	return time.Duration(retryCount+1) * p.BaseDelay
}

// Next reports whether another retry is allowed after retryCount retries,
// and if so how long to wait before it.
func (p RetryPolicy) Next(retryCount int) (time.Duration, bool) {
	if retryCount >= p.MaxRetries {
		return 0, false
	}
	return p.Delay(retryCount), true
}
