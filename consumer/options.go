package consumer

import (
	"errors"
	"fmt"
	"time"

	"github.com/slackmgr/widget-consumer/types"
)

// Option is a functional option for configuring a [Consumer].
type Option func(*Options)

// Options holds the resolved configuration for a [Consumer].
type Options struct {
	workers             int
	batchSize           int32
	waitSeconds         int32
	visibilityTimeout   time.Duration
	maxLeaseExtension   time.Duration
	shutdownGrace       time.Duration
	maxReceiveCount     int
	retryBackOff        *BackOff
	receiveBackoffStart time.Duration
	receiveBackoffMax   time.Duration
	deadLetterSink      types.DeadLetterSink
	archive             types.Archive
	metrics             Metrics
	clock               Clock
}

func newOptions() *Options {
	return &Options{
		workers:             10,
		batchSize:           10,
		waitSeconds:         20,
		visibilityTimeout:   30 * time.Second,
		maxLeaseExtension:   10 * time.Minute,
		shutdownGrace:       30 * time.Second,
		receiveBackoffStart: time.Second,
		receiveBackoffMax:   30 * time.Second,
		metrics:             noopMetrics{},
		clock:               systemClock{},
	}
}

func (o *Options) validate() error {
	if o.workers < 1 || o.workers > 1000 {
		return errors.New("number of workers must be between 1 and 1000")
	}

	if o.batchSize < 1 || o.batchSize > 10 {
		return errors.New("batch size must be between 1 and 10")
	}

	if o.waitSeconds < 0 || o.waitSeconds > 20 {
		return errors.New("receive wait time must be between 0 and 20 seconds")
	}

	if o.visibilityTimeout < time.Second || o.visibilityTimeout > MaxVisibilityTimeoutSeconds*time.Second {
		return errors.New("visibility timeout must be between 1 second and 12 hours")
	}

	if o.maxLeaseExtension < o.visibilityTimeout {
		return errors.New("max lease extension must not be shorter than the visibility timeout")
	}

	if o.shutdownGrace < 0 {
		return errors.New("shutdown grace period cannot be negative")
	}

	if o.maxReceiveCount < 0 {
		return errors.New("max receive count cannot be negative")
	}

	if o.receiveBackoffStart <= 0 || o.receiveBackoffMax < o.receiveBackoffStart {
		return errors.New("receive backoff must be positive and capped above its start value")
	}

	if o.retryBackOff != nil {
		if err := o.retryBackOff.validate(); err != nil {
			return fmt.Errorf("invalid retry backoff: %w", err)
		}
	}

	if o.metrics == nil {
		return errors.New("metrics cannot be nil")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	return nil
}

// WithWorkers sets how many messages are processed concurrently.
// Must be between 1 and 1000. Default: 10.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.workers = n
	}
}

// WithBatchSize sets the maximum number of messages per receive call.
// Must be between 1 and 10. Default: 10.
func WithBatchSize(n int32) Option {
	return func(o *Options) {
		o.batchSize = n
	}
}

// WithWaitSeconds sets the long-poll wait of each receive call.
// Must be between 0 and 20. Default: 20.
func WithWaitSeconds(n int32) Option {
	return func(o *Options) {
		o.waitSeconds = n
	}
}

// WithVisibilityTimeout must match the visibility timeout the queue client
// requests on receive. It is used for local lease expiry and as the length
// of each extension. Default: 30 seconds.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.visibilityTimeout = d
	}
}

// WithMaxLeaseExtension caps the total time a message is kept invisible by
// extensions. Default: 10 minutes.
func WithMaxLeaseExtension(d time.Duration) Option {
	return func(o *Options) {
		o.maxLeaseExtension = d
	}
}

// WithShutdownGrace sets how long in-flight messages may keep processing
// after the run context is cancelled. Default: 30 seconds.
func WithShutdownGrace(d time.Duration) Option {
	return func(o *Options) {
		o.shutdownGrace = d
	}
}

// WithMaxReceiveCount dead-letters a message whose write keeps failing
// transiently once it has been received n times. Zero disables the check.
// Default: 0.
func WithMaxReceiveCount(n int) Option {
	return func(o *Options) {
		o.maxReceiveCount = n
	}
}

// WithRetryBackOff changes the visibility timeout of a message after a
// transient write failure according to b. Default: nil (disabled).
func WithRetryBackOff(b *BackOff) Option {
	return func(o *Options) {
		o.retryBackOff = b
	}
}

// WithDeadLetterSink forwards dead-lettered messages to sink before they are
// deleted. Default: nil (dead-lettered messages are only deleted).
func WithDeadLetterSink(sink types.DeadLetterSink) Option {
	return func(o *Options) {
		o.deadLetterSink = sink
	}
}

// WithArchive stores a copy of each written request before its message is
// deleted. Default: nil.
func WithArchive(archive types.Archive) Option {
	return func(o *Options) {
		o.archive = archive
	}
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m Metrics) Option {
	return func(o *Options) {
		o.metrics = m
	}
}

// WithClock replaces the wall clock used for lease bookkeeping.
func WithClock(c Clock) Option {
	return func(o *Options) {
		o.clock = c
	}
}
