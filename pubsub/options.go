package pubsub

import (
	"errors"
	"time"
)

type Option func(*Options)

type Options struct {
	publisherDelayThreshold time.Duration
	publisherCountThreshold int
	publisherByteThreshold  int
	publishTimeout          time.Duration
	pubsubClient            pubsubClient
}

func newOptions() *Options {
	return &Options{
		publisherDelayThreshold: 10 * time.Millisecond,
		publisherCountThreshold: 100,
		publisherByteThreshold:  1e6, // 1 MB
		publishTimeout:          10 * time.Second,
	}
}

func (o *Options) validatePublisher() error {
	if o.publisherDelayThreshold < 0 {
		return errors.New("publisher delay threshold must be non-negative")
	}

	if o.publisherCountThreshold <= 0 {
		return errors.New("publisher count threshold must be greater than zero")
	}

	if o.publisherByteThreshold <= 0 {
		return errors.New("publisher byte threshold must be greater than zero")
	}

	if o.publishTimeout < 100*time.Millisecond || o.publishTimeout > time.Minute {
		return errors.New("publish timeout must be between 100 milliseconds and 1 minute")
	}

	return nil
}

func WithPublisherDelayThreshold(d time.Duration) Option {
	return func(o *Options) {
		o.publisherDelayThreshold = d
	}
}

func WithPublisherCountThreshold(n int) Option {
	return func(o *Options) {
		o.publisherCountThreshold = n
	}
}

func WithPublisherByteThreshold(n int) Option {
	return func(o *Options) {
		o.publisherByteThreshold = n
	}
}

// WithPublishTimeout bounds how long Forward waits for the server to
// acknowledge a publish. Default: 10 seconds.
func WithPublishTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.publishTimeout = d
	}
}

// WithPubSubClient sets a custom pubsubClient implementation for testing.
func WithPubSubClient(client pubsubClient) Option {
	return func(o *Options) {
		o.pubsubClient = client
	}
}
