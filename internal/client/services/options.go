package services

import "time"

// RetryPolicy bounds how transient failures are retried.
type RetryPolicy struct {
	Base       time.Duration
	Max        time.Duration
	MaxRetries uint64
	JitterPct  uint64
}

var DefaultRetryPolicy = RetryPolicy{
	Base:       500 * time.Millisecond,
	Max:        30 * time.Second,
	MaxRetries: 5,
	JitterPct:  20,
}

type options struct {
	retry RetryPolicy
	now   func() time.Time
}

// Option tunes a service.
type Option func(*options)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) { o.retry = p }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		retry: DefaultRetryPolicy,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
