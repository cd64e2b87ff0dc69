package consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slackmgr/widget-consumer/types"
)

// lease is the local view of one message's visibility window. The mutex
// serializes extension with commit, so a lease is never extended after its
// message has been deleted, and a delete never races an in-progress
// extension.
type lease struct {
	messageID         string
	receiptHandle     string
	receivedAt        time.Time
	lastExtendedAt    time.Time
	expiresAt         time.Time
	visibilityTimeout time.Duration
	clock             Clock
	extendFunc        func(ctx context.Context, seconds int32) error
	released          bool
	mu                sync.Mutex
}

func newLease(msg *types.QueueMessage, visibilityTimeout time.Duration, clock Clock, extendFunc func(ctx context.Context, seconds int32) error) *lease {
	receivedAt := msg.ReceiveTimestamp
	if receivedAt.IsZero() {
		receivedAt = clock.Now()
	}

	return &lease{
		messageID:         msg.MessageID,
		receiptHandle:     msg.ReceiptHandle,
		receivedAt:        receivedAt,
		lastExtendedAt:    receivedAt,
		expiresAt:         receivedAt.Add(visibilityTimeout),
		visibilityTimeout: visibilityTimeout,
		clock:             clock,
		extendFunc:        extendFunc,
	}
}

func (l *lease) MessageID() string {
	return l.messageID
}

func (l *lease) ReceiptHandle() string {
	return l.receiptHandle
}

func (l *lease) ReceivedAt() time.Time {
	return l.receivedAt
}

// Expired reports whether the visibility window has run out locally.
func (l *lease) Expired() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.expiredLocked()
}

func (l *lease) expiredLocked() bool {
	return !l.clock.Now().Before(l.expiresAt)
}

// Release stops further extensions. It is safe to call more than once.
func (l *lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.released = true
}

func (l *lease) IsReleased() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.released
}

// NeedsExtensionNow returns true once more than half of the current
// visibility window has elapsed.
func (l *lease) NeedsExtensionNow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return !l.released && l.clock.Now().Sub(l.lastExtendedAt) > l.visibilityTimeout/2
}

// Extend renews the visibility window for another visibilityTimeout.
// A released lease is left alone.
func (l *lease) Extend(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return nil
	}

	if l.expiredLocked() {
		return fmt.Errorf("%w: lease of message %s expired at %s", types.ErrStaleHandle, l.messageID, l.expiresAt.Format(time.RFC3339))
	}

	if err := l.extendFunc(ctx, int32(l.visibilityTimeout/time.Second)); err != nil {
		return err
	}

	now := l.clock.Now()
	l.lastExtendedAt = now
	l.expiresAt = now.Add(l.visibilityTimeout)

	return nil
}

// Settle releases the lease and, if it has not expired, runs f while still
// holding the lock. An expired lease yields ErrStaleHandle without calling f.
func (l *lease) Settle(ctx context.Context, f func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.released = true

	if l.expiredLocked() {
		return fmt.Errorf("%w: lease of message %s expired at %s", types.ErrStaleHandle, l.messageID, l.expiresAt.Format(time.RFC3339))
	}

	return f(ctx)
}
