package sqs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/slackmgr/widget-consumer/types"
)

const deadLetterGroupID = "dead-letter"

// DeadLetterQueue forwards messages that can never be processed to a second
// SQS queue. It implements [types.DeadLetterSink] and supports both FIFO and
// standard queues.
//
// For FIFO queues all messages share the group ID "dead-letter" and the
// deduplication ID is derived from a SHA-256 hash of the source message ID
// and body, so a message forwarded twice (after a lost delete) is stored once.
//
// Create a DeadLetterQueue with [NewDeadLetterQueue] and call
// [DeadLetterQueue.Init] once before forwarding.
type DeadLetterQueue struct {
	client      sqsClient
	queueURL    string
	awsCfg      *aws.Config
	opts        *Options
	logger      types.Logger
	initialized bool
}

// NewDeadLetterQueue creates a DeadLetterQueue targeting queueURL.
// NewDeadLetterQueue does not connect to AWS.
func NewDeadLetterQueue(awsCfg *aws.Config, queueURL string, logger types.Logger, opts ...Option) *DeadLetterQueue {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &DeadLetterQueue{
		awsCfg:   awsCfg,
		queueURL: queueURL,
		opts:     options,
		logger:   logger.WithField("component", "sqs_dead_letter").WithField("queue_url", queueURL),
	}
}

// Init builds the SDK client and verifies the target queue exists.
// Failures wrap [types.ErrFatalConfig]. Init is idempotent.
func (d *DeadLetterQueue) Init(ctx context.Context) (*DeadLetterQueue, error) {
	if d.initialized {
		return d, nil
	}

	if !ShouldHandleTarget(d.queueURL) {
		return nil, fmt.Errorf("%w: dead-letter target %q is not an SQS queue URL", types.ErrFatalConfig, d.queueURL)
	}

	if err := d.opts.validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid SQS options: %w", types.ErrFatalConfig, err)
	}

	d.client = buildClient(d.awsCfg, d.opts)

	input := &sqs.GetQueueAttributesInput{
		QueueUrl:       &d.queueURL,
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	}

	if _, err := d.client.GetQueueAttributes(ctx, input); err != nil {
		return nil, fmt.Errorf("%w: failed to get attributes of dead-letter queue %s: %w", types.ErrFatalConfig, d.queueURL, err)
	}

	d.initialized = true

	return d, nil
}

// ShouldHandleTarget reports whether target is an SQS queue URL, i.e. begins
// with "https://sqs.".
func ShouldHandleTarget(target string) bool {
	return strings.HasPrefix(target, "https://sqs.")
}

// Forward sends the original message body to the dead-letter queue, tagged
// with the reason and the source message details.
func (d *DeadLetterQueue) Forward(ctx context.Context, msg *types.QueueMessage, reason error) error {
	if !d.initialized {
		return errors.New("SQS dead-letter queue not initialized")
	}

	if msg == nil {
		return errors.New("message cannot be nil")
	}

	body := msg.Body
	if body == "" {
		// SQS rejects empty bodies; keep the message inspectable.
		body = "{}"
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          &d.queueURL,
		MessageBody:       &body,
		MessageAttributes: deadLetterAttributes(msg, reason),
	}

	if strings.HasSuffix(d.queueURL, ".fifo") {
		input.MessageGroupId = aws.String(deadLetterGroupID)
		input.MessageDeduplicationId = aws.String(hash(msg.MessageID, body))
	}

	if _, err := d.client.SendMessage(ctx, input); err != nil {
		return classifyQueueError(err, "failed to send message to SQS dead-letter queue")
	}

	d.logger.WithField("message_id", msg.MessageID).Debug("Message forwarded to SQS dead-letter queue")

	return nil
}

func deadLetterAttributes(msg *types.QueueMessage, reason error) map[string]sqstypes.MessageAttributeValue {
	attrs := map[string]sqstypes.MessageAttributeValue{}

	for name, value := range types.DeadLetterAttributes(msg, reason) {
		dataType := "String"
		if name == types.AttrReceiveCount {
			dataType = "Number"
		}

		attrs[name] = sqstypes.MessageAttributeValue{
			DataType:    aws.String(dataType),
			StringValue: aws.String(value),
		}
	}

	return attrs
}

func hash(input ...string) string {
	h := sha256.New()

	for _, s := range input {
		h.Write([]byte(s))
		h.Write([]byte{0}) // null byte delimiter to prevent hash collisions
	}

	bs := h.Sum(nil)

	return base64.URLEncoding.EncodeToString(bs)
}
