package s3

import (
	"errors"
	"strings"
	"time"
)

// Option is a functional option for configuring an [Archive].
type Option func(*Options)

// Options holds the resolved configuration for an [Archive].
type Options struct {
	prefix                    string
	endpoint                  string
	usePathStyle              bool
	s3APIMaxRetryAttempts     int
	s3APIMaxRetryBackoffDelay time.Duration
	s3Client                  s3Client // Optional: injected S3 client for testing
}

func newOptions() *Options {
	return &Options{
		prefix:                    "widgets",
		s3APIMaxRetryAttempts:     5,
		s3APIMaxRetryBackoffDelay: 10 * time.Second,
	}
}

func (o *Options) validate() error {
	if strings.HasPrefix(o.prefix, "/") || strings.HasSuffix(o.prefix, "/") {
		return errors.New("S3 key prefix must not start or end with a slash")
	}

	if o.s3APIMaxRetryAttempts < 0 || o.s3APIMaxRetryAttempts > 10 {
		return errors.New("max S3 API retry attempts must be between 0 and 10")
	}

	if o.s3APIMaxRetryBackoffDelay < 1*time.Second || o.s3APIMaxRetryBackoffDelay > 30*time.Second {
		return errors.New("max S3 API retry backoff delay must be between 1 and 30 seconds")
	}

	return nil
}

// WithPrefix sets the key prefix under which widgets are archived.
// An empty prefix stores widgets at the bucket root. Default: "widgets".
func WithPrefix(prefix string) Option {
	return func(o *Options) {
		o.prefix = prefix
	}
}

// WithEndpoint points the client at an S3-compatible endpoint such as MinIO
// or LocalStack.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.endpoint = endpoint
	}
}

// WithPathStyle enables path-style addressing (bucket in the path rather
// than the host name).
func WithPathStyle(enabled bool) Option {
	return func(o *Options) {
		o.usePathStyle = enabled
	}
}

// WithS3APIMaxRetryAttempts sets the maximum number of retry attempts for
// failed S3 API calls. Must be between 0 and 10. Default: 5.
func WithS3APIMaxRetryAttempts(n int) Option {
	return func(o *Options) {
		o.s3APIMaxRetryAttempts = n
	}
}

// WithS3APIMaxRetryBackoffDelay sets the maximum backoff delay between
// consecutive S3 API retry attempts. Must be between 1 and 30 seconds.
// Default: 10 seconds.
func WithS3APIMaxRetryBackoffDelay(d time.Duration) Option {
	return func(o *Options) {
		o.s3APIMaxRetryBackoffDelay = d
	}
}

// WithS3Client replaces the default AWS S3 client. Intended for tests.
func WithS3Client(client s3Client) Option {
	return func(o *Options) {
		o.s3Client = client
	}
}
