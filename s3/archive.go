package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/slackmgr/widget-consumer/decoder"
	"github.com/slackmgr/widget-consumer/types"
)

// s3Client is the subset of *s3.Client used by this package.
type s3Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// archivedWidget is the JSON document stored for each committed request.
type archivedWidget struct {
	RequestID string         `json:"request_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

// Archive stores a JSON copy of every committed widget request in an S3
// bucket. It implements [types.Archive].
//
// Objects are keyed "<prefix>/<owner>/<request_id>.json", where owner is the
// slug of payload["owner"]. Key and body depend only on the request, so
// storing the same request twice overwrites the object with identical
// content.
type Archive struct {
	client      s3Client
	bucket      string
	awsCfg      *aws.Config
	opts        *Options
	logger      types.Logger
	initialized bool
}

// New creates an Archive for bucket. New does not connect to AWS.
func New(awsCfg *aws.Config, bucket string, logger types.Logger, opts ...Option) *Archive {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Archive{
		awsCfg: awsCfg,
		bucket: bucket,
		opts:   options,
		logger: logger.WithField("component", "s3_archive").WithField("bucket", bucket),
	}
}

// Init validates options, builds the SDK client and checks that the bucket
// is reachable with HeadBucket. Failures wrap [types.ErrFatalConfig].
// Init is idempotent.
func (a *Archive) Init(ctx context.Context) (*Archive, error) {
	if a.initialized {
		return a, nil
	}

	if a.bucket == "" {
		return nil, fmt.Errorf("%w: S3 archive bucket cannot be empty", types.ErrFatalConfig)
	}

	if err := a.opts.validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid S3 options: %w", types.ErrFatalConfig, err)
	}

	a.client = buildClient(a.awsCfg, a.opts)

	if _, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		return nil, fmt.Errorf("%w: failed to access S3 bucket %s: %w", types.ErrFatalConfig, a.bucket, err)
	}

	a.initialized = true

	a.logger.WithField("prefix", a.opts.prefix).Info("S3 archive initialized")

	return a, nil
}

// Key returns the object key used for req. The owner and request ID are
// escaped as single path segments, so distinct requests never share a key
// and no key leaves the prefix.
func (a *Archive) Key(req *types.WidgetRequest) string {
	return path.Join(a.opts.prefix, keySegment(decoder.OwnerSlug(req.Payload)), keySegment(req.RequestID)+".json")
}

func keySegment(s string) string {
	escaped := url.PathEscape(s)

	if strings.Trim(escaped, ".") == "" {
		return strings.ReplaceAll(escaped, ".", "%2E")
	}

	return escaped
}

// Store writes req to the bucket. Failures wrap [types.ErrTransientWrite];
// the message is retried through redelivery.
func (a *Archive) Store(ctx context.Context, req *types.WidgetRequest) error {
	if !a.initialized {
		return errors.New("S3 archive not initialized")
	}

	if req == nil {
		return errors.New("widget request cannot be nil")
	}

	payload := req.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	reqType := req.Type
	if reqType == "" {
		reqType = types.RequestTypeCreate
	}

	body, err := json.Marshal(&archivedWidget{
		RequestID: req.RequestID,
		Type:      reqType,
		Payload:   payload,
	})
	if err != nil {
		return types.Wrap(types.ErrFatalWrite, err, "failed to marshal widget %s for archive", req.RequestID)
	}

	key := a.Key(req)

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return types.Wrap(types.ErrTransientWrite, err, "failed to archive widget %s to s3://%s/%s", req.RequestID, a.bucket, key)
	}

	a.logger.WithField("request_id", req.RequestID).WithField("key", key).Debug("Widget archived to S3")

	return nil
}

func buildClient(awsCfg *aws.Config, opts *Options) s3Client {
	// Use injected client if provided (for testing), otherwise create real client
	if opts.s3Client != nil {
		return opts.s3Client
	}

	return s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
		o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, opts.s3APIMaxRetryBackoffDelay)
		o.Retryer = retry.AddWithMaxAttempts(o.Retryer, opts.s3APIMaxRetryAttempts)
		o.UsePathStyle = opts.usePathStyle

		if opts.endpoint != "" {
			o.BaseEndpoint = aws.String(opts.endpoint)
		}
	})
}
