package dynamodb

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client]. Use [Option] functions
// (such as [WithTimeToLive]) to customise the defaults.
type Options struct {
	timeToLive  time.Duration
	dynamoDBAPI API
	clock       func() time.Time
}

func newOptions() *Options {
	return &Options{
		clock: time.Now,
	}
}

func (o *Options) validate() error {
	if o.timeToLive < 0 {
		return errors.New("widget time to live cannot be negative")
	}

	if o.timeToLive > 0 && o.timeToLive < time.Hour {
		return errors.New("widget time to live must be at least one hour")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	return nil
}

// WithTimeToLive sets a TTL on every written widget record. DynamoDB removes
// records once the TTL has passed; the table must have TTL enabled on the
// ttl attribute. Zero (the default) disables expiry. A non-zero duration
// must be at least one hour.
func WithTimeToLive(d time.Duration) Option {
	return func(o *Options) {
		o.timeToLive = d
	}
}

// WithAPI sets a custom [API] implementation. This is useful when a custom
// DynamoDB configuration is required, or for injecting mocks in tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.dynamoDBAPI = api
	}
}

// WithClock sets a custom clock function used for written_at and TTL values.
// Defaults to [time.Now]. This is useful for controlling time in tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}
