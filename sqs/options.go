package sqs

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Client] or a
// [DeadLetterQueue]. Options are passed to the constructor and applied before
// Init is called.
type Option func(*Options)

// Options holds the resolved configuration for a [Client].
// All fields are set to sensible defaults by [New]; use With* functions to
// override individual values.
type Options struct {
	sqsVisibilityTimeoutSeconds int32
	sqsAPIMaxRetryAttempts      int
	sqsAPIMaxRetryBackoffDelay  time.Duration
	deleteTimeout               time.Duration
	sqsClient                   sqsClient // Optional: injected SQS client for testing
}

func newOptions() *Options {
	return &Options{
		sqsVisibilityTimeoutSeconds: 30,
		sqsAPIMaxRetryAttempts:      5,
		sqsAPIMaxRetryBackoffDelay:  10 * time.Second,
		deleteTimeout:               5 * time.Second,
	}
}

func (o *Options) validate() error {
	if o.sqsVisibilityTimeoutSeconds < 10 || o.sqsVisibilityTimeoutSeconds > 43200 {
		return errors.New("SQS message visibility timeout must be between 10 seconds and 12 hours")
	}

	if o.sqsAPIMaxRetryAttempts < 0 || o.sqsAPIMaxRetryAttempts > 10 {
		return errors.New("max SQS API retry attempts must be between 0 and 10")
	}

	if o.sqsAPIMaxRetryBackoffDelay < 1*time.Second || o.sqsAPIMaxRetryBackoffDelay > 30*time.Second {
		return errors.New("max SQS API retry backoff delay must be between 1 and 30 seconds")
	}

	if o.deleteTimeout < 100*time.Millisecond || o.deleteTimeout > time.Minute {
		return errors.New("SQS delete timeout must be between 100 milliseconds and 1 minute")
	}

	return nil
}

// VisibilityTimeout returns the configured visibility timeout.
func (o *Options) VisibilityTimeout() time.Duration {
	return time.Duration(o.sqsVisibilityTimeoutSeconds) * time.Second
}

// WithSqsVisibilityTimeout sets the visibility timeout requested for each
// received message, i.e. the initial lease duration.
// Must be between 10 and 43200 seconds. Default: 30.
func WithSqsVisibilityTimeout(seconds int32) Option {
	return func(o *Options) {
		o.sqsVisibilityTimeoutSeconds = seconds
	}
}

// WithSqsAPIMaxRetryAttempts sets the maximum number of retry attempts for
// failed SQS API calls. Must be between 0 and 10. Default: 5.
func WithSqsAPIMaxRetryAttempts(n int) Option {
	return func(o *Options) {
		o.sqsAPIMaxRetryAttempts = n
	}
}

// WithSqsAPIMaxRetryBackoffDelay sets the maximum backoff delay between
// consecutive SQS API retry attempts. Must be between 1 second and 30 seconds.
// Default: 10 seconds.
func WithSqsAPIMaxRetryBackoffDelay(d time.Duration) Option {
	return func(o *Options) {
		o.sqsAPIMaxRetryBackoffDelay = d
	}
}

// WithDeleteTimeout bounds each DeleteMessage call. Deletes run on a context
// detached from the caller's so that a commit is not lost to shutdown.
// Must be between 100 milliseconds and 1 minute. Default: 5 seconds.
func WithDeleteTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.deleteTimeout = d
	}
}

// WithSQSClient replaces the default AWS SQS client with a custom
// implementation of the internal sqsClient interface. This option is
// intended for testing with mock or stub clients.
func WithSQSClient(client sqsClient) Option {
	return func(o *Options) {
		o.sqsClient = client
	}
}
