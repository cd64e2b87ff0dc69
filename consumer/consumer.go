package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/slackmgr/widget-consumer/decoder"
	"github.com/slackmgr/widget-consumer/types"
	"golang.org/x/sync/semaphore"
)

// Stats are cumulative message counters since the consumer was created.
type Stats struct {
	Received     int64
	Acknowledged int64
	Skipped      int64
	DeadLettered int64
	Retried      int64
	Stale        int64
}

// Consumer moves widget requests from a queue into a table. A message is
// deleted from the queue only after its request has been durably written,
// or after it has been dead-lettered.
type Consumer struct {
	queue  types.Queue
	table  types.Table
	opts   *Options
	logger types.Logger

	received     atomic.Int64
	acknowledged atomic.Int64
	skipped      atomic.Int64
	deadLettered atomic.Int64
	retried      atomic.Int64
	stale        atomic.Int64
}

// New creates a Consumer reading from queue and writing to table. Invalid
// options yield an error wrapping [types.ErrFatalConfig].
func New(queue types.Queue, table types.Table, logger types.Logger, opts ...Option) (*Consumer, error) {
	if queue == nil {
		return nil, fmt.Errorf("%w: queue cannot be nil", types.ErrFatalConfig)
	}

	if table == nil {
		return nil, fmt.Errorf("%w: table cannot be nil", types.ErrFatalConfig)
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid consumer options: %w", types.ErrFatalConfig, err)
	}

	return &Consumer{
		queue:  queue,
		table:  table,
		opts:   options,
		logger: logger.WithField("component", "consumer"),
	}, nil
}

// Stats returns a snapshot of the message counters.
func (c *Consumer) Stats() Stats {
	return Stats{
		Received:     c.received.Load(),
		Acknowledged: c.acknowledged.Load(),
		Skipped:      c.skipped.Load(),
		DeadLettered: c.deadLettered.Load(),
		Retried:      c.retried.Load(),
		Stale:        c.stale.Load(),
	}
}

// Run polls the queue until ctx is cancelled or the queue reports a fatal
// error. Cancellation stops polling immediately; messages already being
// processed get up to the shutdown grace period to finish, after which
// their leases are abandoned. Run returns nil on cancellation and an error
// wrapping [types.ErrFatalQueue] otherwise.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.WithFields(map[string]any{
		"workers":      c.opts.workers,
		"batch_size":   c.opts.batchSize,
		"wait_seconds": c.opts.waitSeconds,
	}).Info("Consumer started")

	processingCtx, cancelProcessing := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelProcessing()

	leaseCh := make(chan *lease, c.opts.workers+int(c.opts.batchSize))
	tracker := newLeaseTracker(c.opts, c.logger)
	trackerDone := make(chan struct{})

	go func() {
		defer close(trackerDone)
		tracker.run(processingCtx, leaseCh)
	}()

	stopping := make(chan struct{})
	graceDone := make(chan struct{})

	go func() {
		defer close(graceDone)
		c.enforceGrace(ctx, stopping, processingCtx, cancelProcessing)
	}()

	sem := semaphore.NewWeighted(int64(c.opts.workers))
	wg := &sync.WaitGroup{}

	runErr := c.poll(ctx, processingCtx, sem, wg, leaseCh)

	close(stopping)
	wg.Wait()
	cancelProcessing()
	<-graceDone
	<-trackerDone

	stats := c.Stats()
	c.logger.WithFields(map[string]any{
		"received":      stats.Received,
		"acknowledged":  stats.Acknowledged,
		"skipped":       stats.Skipped,
		"dead_lettered": stats.DeadLettered,
		"retried":       stats.Retried,
		"stale":         stats.Stale,
	}).Info("Consumer stopped")

	return runErr
}

func (c *Consumer) poll(ctx, processingCtx context.Context, sem *semaphore.Weighted, wg *sync.WaitGroup, leaseCh chan<- *lease) error {
	backoff := newReceiveBackoff(c.opts.receiveBackoffStart, c.opts.receiveBackoffMax)

	for ctx.Err() == nil {
		messages, err := c.queue.Receive(ctx, c.opts.batchSize, c.opts.waitSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			if errors.Is(err, types.ErrFatalQueue) {
				c.logger.Errorf("Fatal queue error, stopping consumer: %v", err)
				return err
			}

			c.opts.metrics.ReceiveError()

			delay := backoff.next()
			c.logger.WithField("retry_in", delay).Warnf("Failed to receive messages: %v", err)

			if !sleep(ctx, delay) {
				return nil
			}

			continue
		}

		backoff.reset()

		if len(messages) == 0 {
			continue
		}

		c.received.Add(int64(len(messages)))
		c.opts.metrics.MessagesReceived(len(messages))

		for _, msg := range messages {
			// Messages of a received batch are still started after shutdown
			// begins; only the end of the grace period stops them.
			if err := sem.Acquire(processingCtx, 1); err != nil {
				// Unstarted messages are redelivered when their lease runs out.
				return nil
			}

			l := newLease(msg, c.opts.visibilityTimeout, c.opts.clock, func(ctx context.Context, seconds int32) error {
				return c.queue.ExtendVisibility(ctx, msg.ReceiptHandle, seconds)
			})

			select {
			case leaseCh <- l:
			case <-processingCtx.Done():
			}

			wg.Go(func() {
				defer sem.Release(1)
				c.handle(processingCtx, msg, l)
			})
		}
	}

	return nil
}

// enforceGrace cancels processing once the shutdown grace period has passed
// after ctx is cancelled or polling stops. It returns early when processing
// is cancelled because all work finished.
func (c *Consumer) enforceGrace(ctx context.Context, stopping <-chan struct{}, processingCtx context.Context, cancelProcessing context.CancelFunc) {
	select {
	case <-ctx.Done():
	case <-stopping:
	case <-processingCtx.Done():
		return
	}

	timer := time.NewTimer(c.opts.shutdownGrace)
	defer timer.Stop()

	select {
	case <-processingCtx.Done():
	case <-timer.C:
		c.logger.WithField("grace", c.opts.shutdownGrace).Warn("Shutdown grace period elapsed, abandoning in-flight messages")
		cancelProcessing()
	}
}

func (c *Consumer) handle(ctx context.Context, msg *types.QueueMessage, l *lease) {
	started := c.opts.clock.Now()

	c.opts.metrics.InFlight(1)
	defer c.opts.metrics.InFlight(-1)

	defer l.Release()

	outcome := c.process(ctx, msg, l)

	c.opts.metrics.ObserveProcessing(string(outcome), c.opts.clock.Now().Sub(started))
}

func (c *Consumer) process(ctx context.Context, msg *types.QueueMessage, l *lease) (outcome Outcome) {
	logger := c.logger.WithField("message_id", msg.MessageID).WithField("receive_count", msg.ReceiveCount)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Recovered from panic while processing message: %v", r)
			outcome = c.retry(ctx, msg, l, logger, fmt.Errorf("panic: %v", r))
		}
	}()

	req, err := decoder.Decode(msg)
	if err != nil {
		return c.deadLetter(ctx, msg, l, logger, err)
	}

	logger = logger.WithField("request_id", req.RequestID)

	if !req.IsCreate() {
		logger.WithField("type", req.Type).Info("Skipping request with unhandled type")

		if c.commit(ctx, msg, l, logger) {
			c.skipped.Add(1)
			c.opts.metrics.MessageSkipped()
		}

		return Skip
	}

	if err := c.table.Upsert(ctx, req.RequestID, req.Payload); err != nil {
		if types.IsDeadLetter(err) {
			return c.deadLetter(ctx, msg, l, logger, err)
		}

		return c.retry(ctx, msg, l, logger, err)
	}

	if c.opts.archive != nil {
		if err := c.opts.archive.Store(ctx, req); err != nil {
			return c.retry(ctx, msg, l, logger, fmt.Errorf("failed to archive widget request: %w", err))
		}
	}

	if c.commit(ctx, msg, l, logger) {
		c.acknowledged.Add(1)
		c.opts.metrics.MessageAcknowledged()
		logger.Debug("Widget request committed")
	}

	return Success
}

// commit deletes the message if its lease is still held. It reports whether
// the delete succeeded. Stale handles are counted and otherwise ignored.
func (c *Consumer) commit(ctx context.Context, msg *types.QueueMessage, l *lease, logger types.Logger) bool {
	err := l.Settle(ctx, func(ctx context.Context) error {
		return c.queue.Delete(ctx, msg.ReceiptHandle)
	})

	switch {
	case err == nil:
		return true
	case errors.Is(err, types.ErrStaleHandle):
		c.stale.Add(1)
		c.opts.metrics.StaleHandle()
		logger.Warnf("Lease expired before delete, message will be redelivered: %v", err)
	default:
		logger.Errorf("Failed to delete message, it will be redelivered: %v", err)
	}

	return false
}

func (c *Consumer) deadLetter(ctx context.Context, msg *types.QueueMessage, l *lease, logger types.Logger, reason error) Outcome {
	if c.opts.deadLetterSink != nil {
		if err := c.opts.deadLetterSink.Forward(ctx, msg, reason); err != nil {
			logger.Errorf("Failed to forward message to dead-letter sink, leaving it for redelivery: %v", err)
			l.Release()
			c.retried.Add(1)
			c.opts.metrics.MessageRetried()

			return Retry
		}
	}

	logger.Warnf("Dead-lettering message: %v", reason)

	if c.commit(ctx, msg, l, logger) {
		c.deadLettered.Add(1)
		c.opts.metrics.MessageDeadLettered()
	}

	return Failure
}

func (c *Consumer) retry(ctx context.Context, msg *types.QueueMessage, l *lease, logger types.Logger, reason error) Outcome {
	if c.opts.maxReceiveCount > 0 && msg.ReceiveCount >= c.opts.maxReceiveCount {
		return c.deadLetter(ctx, msg, l, logger, fmt.Errorf("giving up after %d receives: %w", msg.ReceiveCount, reason))
	}

	l.Release()
	c.retried.Add(1)
	c.opts.metrics.MessageRetried()

	if c.opts.retryBackOff == nil {
		logger.Warnf("Transient failure, message will be redelivered: %v", reason)
		return Retry
	}

	seconds := c.opts.retryBackOff.calculate(msg.ReceiveCount)
	logger.WithField("retry_in_seconds", seconds).Warnf("Transient failure, message will be redelivered: %v", reason)

	if l.Expired() {
		return Retry
	}

	if err := c.queue.ExtendVisibility(ctx, msg.ReceiptHandle, seconds); err != nil {
		if errors.Is(err, types.ErrStaleHandle) {
			c.stale.Add(1)
			c.opts.metrics.StaleHandle()
		}

		logger.Warnf("Failed to set retry backoff: %v", err)
	}

	return Retry
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
