package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"cloud.google.com/go/pubsub/v2"
	"github.com/slackmgr/widget-consumer/types"
)

// TargetScheme prefixes dead-letter targets served by this package.
const TargetScheme = "pubsub://"

// DeadLetterTopic forwards messages that can never be processed to a Pub/Sub
// topic. It implements [types.DeadLetterSink].
type DeadLetterTopic struct {
	gcpClient   *pubsub.Client
	client      pubsubClient
	publisher   pubsubPublisher
	topic       string
	opts        *Options
	logger      types.Logger
	initialized atomic.Bool
}

// ShouldHandleTarget reports whether target has the form
// "pubsub://<project>/<topic>".
func ShouldHandleTarget(target string) bool {
	return strings.HasPrefix(target, TargetScheme)
}

// ParseTarget splits a "pubsub://<project>/<topic>" target into its project
// and topic.
func ParseTarget(target string) (project, topic string, err error) {
	if !ShouldHandleTarget(target) {
		return "", "", fmt.Errorf("dead-letter target %q is not a Pub/Sub target", target)
	}

	project, topic, ok := strings.Cut(strings.TrimPrefix(target, TargetScheme), "/")
	if !ok || project == "" || topic == "" || strings.Contains(topic, "/") {
		return "", "", fmt.Errorf("dead-letter target %q must have the form %s<project>/<topic>", target, TargetScheme)
	}

	return project, topic, nil
}

// NewDeadLetterTopic creates a DeadLetterTopic publishing to topic through c.
func NewDeadLetterTopic(c *pubsub.Client, topic string, logger types.Logger, opts ...Option) (*DeadLetterTopic, error) {
	if c == nil {
		return nil, errors.New("pub/sub client cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	logger = logger.WithField("component", "pubsub_dead_letter").WithField("topic", topic)

	return &DeadLetterTopic{
		gcpClient: c,
		topic:     topic,
		opts:      options,
		logger:    logger,
	}, nil
}

// Init validates options and creates the publisher. Failures wrap
// [types.ErrFatalConfig].
func (d *DeadLetterTopic) Init() (*DeadLetterTopic, error) {
	if d.initialized.Load() {
		return d, nil
	}

	if d.topic == "" {
		return nil, fmt.Errorf("%w: pub/sub topic cannot be empty", types.ErrFatalConfig)
	}

	if err := d.opts.validatePublisher(); err != nil {
		return nil, fmt.Errorf("%w: invalid pub/sub publisher options: %w", types.ErrFatalConfig, err)
	}

	// Use injected client for testing, otherwise wrap the real GCP client.
	if d.opts.pubsubClient != nil {
		d.client = d.opts.pubsubClient
	} else {
		d.client = newRealPubSubClient(d.gcpClient)
	}

	d.publisher = d.client.Publisher(d.topic)

	d.publisher.SetDelayThreshold(d.opts.publisherDelayThreshold)
	d.publisher.SetCountThreshold(d.opts.publisherCountThreshold)
	d.publisher.SetByteThreshold(d.opts.publisherByteThreshold)

	d.initialized.Store(true)

	return d, nil
}

func (d *DeadLetterTopic) Name() string {
	return d.topic
}

// Close stops the publisher, flushing any pending messages.
func (d *DeadLetterTopic) Close() {
	if d.publisher != nil {
		d.publisher.Stop()
	}
}

// Forward publishes the original message body with the dead-letter
// attributes and waits for the server to accept it.
func (d *DeadLetterTopic) Forward(ctx context.Context, msg *types.QueueMessage, reason error) error {
	if !d.initialized.Load() {
		return errors.New("pub/sub dead-letter topic not initialized")
	}

	if msg == nil {
		return errors.New("message cannot be nil")
	}

	body := msg.Body
	if body == "" {
		body = "{}"
	}

	psMsg := &pubsub.Message{
		Data:       []byte(body),
		Attributes: types.DeadLetterAttributes(msg, reason),
	}

	publishCtx, cancel := context.WithTimeout(ctx, d.opts.publishTimeout)
	defer cancel()

	serverID, err := d.publisher.Publish(publishCtx, psMsg).Get(publishCtx)
	if err != nil {
		return fmt.Errorf("failed to publish message %s to pub/sub topic %s: %w", msg.MessageID, d.topic, err)
	}

	d.logger.WithField("message_id", msg.MessageID).WithField("server_id", serverID).Debug("Message forwarded to pub/sub dead-letter topic")

	return nil
}
