package sqs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/slackmgr/widget-consumer/types"
)

// sqsClient is the subset of *sqs.Client used by this package.
type sqsClient interface {
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// errNotInitialized is returned by every operation called before Init. It is
// fatal: the consumer loop cannot recover from it by retrying.
var errNotInitialized = fmt.Errorf("%w: SQS client not initialized", types.ErrFatalQueue)

// QueueStats is a point-in-time view of the approximate queue depth.
type QueueStats struct {
	Available int
	InFlight  int
	Delayed   int
}

// Client is the widget request queue consumer capability. It implements
// [types.Queue] against a single SQS queue identified by URL.
//
// Create a Client with [New], then call [Client.Init] once before any other
// method. Init is not thread-safe; all other methods are safe for concurrent
// use after Init returns.
type Client struct {
	client      sqsClient
	queueURL    string
	awsCfg      *aws.Config
	opts        *Options
	logger      types.Logger
	initialized bool
}

// New creates a Client for the SQS queue at queueURL.
//
// Functional options may be passed to override defaults (see With* functions).
// The logger is automatically enriched with "component" and "queue_url"
// fields.
//
// New does not connect to AWS. Call [Client.Init] to build the SDK client and
// verify that the queue exists.
func New(awsCfg *aws.Config, queueURL string, logger types.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	logger = logger.
		WithField("component", "sqs").
		WithField("queue_url", queueURL)

	return &Client{
		awsCfg:   awsCfg,
		queueURL: queueURL,
		opts:     options,
		logger:   logger,
	}
}

// Init validates options, builds the SDK client and checks that the queue is
// reachable with GetQueueAttributes. Every failure wraps
// [types.ErrFatalConfig]. It returns the receiver so that initialization can
// be chained with [New]:
//
//	client, err := sqs.New(&awsCfg, queueURL, logger).Init(ctx)
//
// Init is idempotent. It is not thread-safe and must be called once during
// application startup before any concurrent access.
func (c *Client) Init(ctx context.Context) (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if err := validateQueueURL(c.queueURL); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrFatalConfig, err)
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid SQS options: %w", types.ErrFatalConfig, err)
	}

	c.client = buildClient(c.awsCfg, c.opts)

	input := &sqs.GetQueueAttributesInput{
		QueueUrl:       &c.queueURL,
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	}

	if _, err := c.client.GetQueueAttributes(ctx, input); err != nil {
		return nil, fmt.Errorf("%w: failed to get attributes of SQS queue %s: %w", types.ErrFatalConfig, c.queueURL, err)
	}

	c.initialized = true

	c.logger.WithField("visibility_timeout_seconds", c.opts.sqsVisibilityTimeoutSeconds).Info("SQS queue client initialized")

	return c, nil
}

// URL returns the queue URL supplied to [New].
func (c *Client) URL() string {
	return c.queueURL
}

// VisibilityTimeout returns the lease duration requested on each receive.
func (c *Client) VisibilityTimeout() time.Duration {
	return c.opts.VisibilityTimeout()
}

// Receive long-polls the queue for up to maxMessages messages (1-10),
// waiting at most waitSeconds (0-20). An empty slice with a nil error means
// the poll timed out. Errors wrap [types.ErrTransientQueue] or
// [types.ErrFatalQueue].
func (c *Client) Receive(ctx context.Context, maxMessages, waitSeconds int32) ([]*types.QueueMessage, error) {
	if !c.initialized {
		return nil, errNotInitialized
	}

	if maxMessages < 1 || maxMessages > 10 {
		return nil, fmt.Errorf("%w: max number of messages per SQS receive must be between 1 and 10, got %d", types.ErrFatalQueue, maxMessages)
	}

	if waitSeconds < 0 || waitSeconds > 20 {
		return nil, fmt.Errorf("%w: SQS receive wait time must be between 0 and 20 seconds, got %d", types.ErrFatalQueue, waitSeconds)
	}

	c.logger.WithField("wait_time", waitSeconds).Debug("Reading SQS queue")

	input := &sqs.ReceiveMessageInput{
		QueueUrl:                    &c.queueURL,
		MaxNumberOfMessages:         maxMessages,
		VisibilityTimeout:           c.opts.sqsVisibilityTimeoutSeconds,
		WaitTimeSeconds:             waitSeconds,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameApproximateReceiveCount},
	}

	output, err := c.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, classifyQueueError(err, "failed to receive SQS messages")
	}

	now := time.Now()
	messages := make([]*types.QueueMessage, 0, len(output.Messages))

	for _, m := range output.Messages {
		msg := &types.QueueMessage{
			MessageID:        aws.ToString(m.MessageId),
			ReceiptHandle:    aws.ToString(m.ReceiptHandle),
			Body:             aws.ToString(m.Body),
			ReceiveCount:     receiveCount(m.Attributes),
			ReceiveTimestamp: now,
		}

		messages = append(messages, msg)

		c.logger.WithField("message_id", msg.MessageID).WithField("receive_count", msg.ReceiveCount).Debug("SQS message received")
	}

	return messages, nil
}

// Delete removes the message with the given receipt handle. An expired lease
// yields an error wrapping [types.ErrStaleHandle].
//
// Delete uses a context detached from ctx's cancellation, bounded by
// [WithDeleteTimeout], so that a commit is not dropped because shutdown
// started while it was in flight.
func (c *Client) Delete(ctx context.Context, receiptHandle string) error {
	if !c.initialized {
		return errNotInitialized
	}

	if receiptHandle == "" {
		return errors.New("receipt handle cannot be empty")
	}

	input := &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: &receiptHandle,
	}

	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.deleteTimeout)
	defer cancel()

	if _, err := c.client.DeleteMessage(deleteCtx, input); err != nil {
		return classifyHandleError(err, "failed to delete SQS message")
	}

	return nil
}

// ExtendVisibility sets the visibility timeout of a leased message to seconds
// from now. An expired lease yields an error wrapping [types.ErrStaleHandle].
func (c *Client) ExtendVisibility(ctx context.Context, receiptHandle string, seconds int32) error {
	if !c.initialized {
		return errNotInitialized
	}

	if receiptHandle == "" {
		return errors.New("receipt handle cannot be empty")
	}

	if seconds < 0 || seconds > 43200 {
		return fmt.Errorf("visibility timeout must be between 0 and 43200 seconds, got %d", seconds)
	}

	input := &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          &c.queueURL,
		ReceiptHandle:     &receiptHandle,
		VisibilityTimeout: seconds,
	}

	if _, err := c.client.ChangeMessageVisibility(ctx, input); err != nil {
		return classifyHandleError(err, "failed to change SQS message visibility")
	}

	c.logger.WithField("visibility_timeout_seconds", seconds).Debug("SQS message visibility changed")

	return nil
}

// Stats reads the approximate number of available, in-flight and delayed
// messages from the queue attributes.
func (c *Client) Stats(ctx context.Context) (*QueueStats, error) {
	if !c.initialized {
		return nil, errNotInitialized
	}

	output, err := c.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: &c.queueURL,
		AttributeNames: []sqstypes.QueueAttributeName{
			sqstypes.QueueAttributeNameApproximateNumberOfMessages,
			sqstypes.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
			sqstypes.QueueAttributeNameApproximateNumberOfMessagesDelayed,
		},
	})
	if err != nil {
		return nil, classifyQueueError(err, "failed to fetch SQS queue stats")
	}

	return &QueueStats{
		Available: atoi(output.Attributes[string(sqstypes.QueueAttributeNameApproximateNumberOfMessages)]),
		InFlight:  atoi(output.Attributes[string(sqstypes.QueueAttributeNameApproximateNumberOfMessagesNotVisible)]),
		Delayed:   atoi(output.Attributes[string(sqstypes.QueueAttributeNameApproximateNumberOfMessagesDelayed)]),
	}, nil
}

func buildClient(awsCfg *aws.Config, opts *Options) sqsClient {
	// Use injected client if provided (for testing), otherwise create real client
	if opts.sqsClient != nil {
		return opts.sqsClient
	}

	return sqs.NewFromConfig(*awsCfg, func(o *sqs.Options) {
		o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, opts.sqsAPIMaxRetryBackoffDelay)
		o.Retryer = retry.AddWithMaxAttempts(o.Retryer, opts.sqsAPIMaxRetryAttempts)
	})
}

func validateQueueURL(queueURL string) error {
	if queueURL == "" {
		return errors.New("SQS queue URL cannot be empty")
	}

	if !strings.HasPrefix(queueURL, "https://") && !strings.HasPrefix(queueURL, "http://") {
		return fmt.Errorf("SQS queue URL %q must be an http(s) URL", queueURL)
	}

	return nil
}

func receiveCount(attrs map[string]string) int {
	return atoi(attrs[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)])
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}

	return n
}
