package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/slackmgr/widget-consumer/types"
	"golang.org/x/sync/semaphore"
)

// leaseTracker tracks in-flight leases and extends their visibility timeout
// so that messages are not redelivered while a worker still holds them.
//
// Extension is best effort: a lease whose extension fails, or which has
// reached the maximum total extension, is dropped from tracking and its
// message may be redelivered. The upsert is idempotent, so a duplicate
// delivery converges to the same stored state.
//
// The leases map is owned by the run goroutine.
type leaseTracker struct {
	leases            map[string]*lease
	visibilityTimeout time.Duration
	maxLeaseExtension time.Duration
	checkInterval     time.Duration
	clock             Clock
	logger            types.Logger
}

func newLeaseTracker(opts *Options, logger types.Logger) *leaseTracker {
	return &leaseTracker{
		leases:            make(map[string]*lease),
		visibilityTimeout: opts.visibilityTimeout,
		maxLeaseExtension: opts.maxLeaseExtension,
		checkInterval:     max(opts.visibilityTimeout/3, time.Second),
		clock:             opts.clock,
		logger:            logger,
	}
}

func (t *leaseTracker) run(ctx context.Context, sourceCh <-chan *lease) {
	t.logger.Debug("Lease tracker started")
	defer t.logger.Debug("Lease tracker exited")

	ticker := time.NewTicker(t.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.processLeases(ctx)
		case l, ok := <-sourceCh:
			if !ok {
				return
			}

			t.leases[l.ReceiptHandle()] = l
		}
	}
}

func (t *leaseTracker) processLeases(ctx context.Context) {
	if len(t.leases) == 0 {
		return
	}

	inNeedOfExtension := []*lease{}

	for handle, l := range t.leases {
		if l.IsReleased() {
			delete(t.leases, handle)
			continue
		}

		if t.clock.Now().Sub(l.ReceivedAt())+t.visibilityTimeout >= t.maxLeaseExtension {
			t.logger.WithField("message_id", l.MessageID()).Warn("Message has reached the maximum lease extension, it will become visible again")
			delete(t.leases, handle)

			continue
		}

		if l.NeedsExtensionNow() {
			inNeedOfExtension = append(inNeedOfExtension, l)
		}
	}

	if len(inNeedOfExtension) == 0 {
		return
	}

	// A few leases are extended inline; larger sets fan out.
	if len(inNeedOfExtension) < 3 {
		t.extendSync(ctx, inNeedOfExtension)
	} else {
		t.extendAsync(ctx, inNeedOfExtension)
	}
}

func (t *leaseTracker) extendSync(ctx context.Context, leases []*lease) {
	for _, l := range leases {
		if err := l.Extend(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}

			t.logger.WithField("message_id", l.MessageID()).Errorf("Failed to extend message visibility, removing from lease tracking: %v", err)

			delete(t.leases, l.ReceiptHandle())
		}
	}
}

func (t *leaseTracker) extendAsync(ctx context.Context, leases []*lease) {
	wg := sync.WaitGroup{}
	sem := semaphore.NewWeighted(3)

	var mu sync.Mutex

	toRemove := []*lease{}

	for _, l := range leases {
		wg.Go(func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			if err := l.Extend(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}

				t.logger.WithField("message_id", l.MessageID()).Errorf("Failed to extend message visibility, removing from lease tracking: %v", err)

				mu.Lock()
				toRemove = append(toRemove, l)
				mu.Unlock()
			}
		})
	}

	wg.Wait()

	for _, l := range toRemove {
		delete(t.leases, l.ReceiptHandle())
	}
}
