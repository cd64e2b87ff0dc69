package consumer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/slackmgr/widget-consumer/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type fakeMessage struct {
	id           string
	body         string
	handle       string
	receiveCount int
	visibleAt    time.Time
	deleted      bool
}

// fakeQueue is an in-memory queue with SQS visibility semantics: a received
// message is hidden for the visibility timeout, and only the receipt handle
// of its latest receive is valid while it is hidden.
type fakeQueue struct {
	mu          sync.Mutex
	clock       *fakeClock
	visibility  time.Duration
	messages    []*fakeMessage
	handleSeq   int
	receiveErrs []error
	deleteErr   error
	deletes     map[string]int
	extensions  map[string][]int32

	receiveCalls int
	deleteCalls  int
	extendCalls  int
}

func newFakeQueue(clock *fakeClock) *fakeQueue {
	return &fakeQueue{
		clock:      clock,
		visibility: 30 * time.Second,
		deletes:    make(map[string]int),
		extensions: make(map[string][]int32),
	}
}

func (q *fakeQueue) send(id, body string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.messages = append(q.messages, &fakeMessage{id: id, body: body, visibleAt: q.clock.Now()})
}

func (q *fakeQueue) Receive(ctx context.Context, maxMessages, _ int32) ([]*types.QueueMessage, error) {
	q.mu.Lock()

	q.receiveCalls++

	if len(q.receiveErrs) > 0 {
		err := q.receiveErrs[0]
		q.receiveErrs = q.receiveErrs[1:]
		q.mu.Unlock()

		return nil, err
	}

	now := q.clock.Now()
	result := []*types.QueueMessage{}

	for _, m := range q.messages {
		if len(result) == int(maxMessages) {
			break
		}

		if m.deleted || now.Before(m.visibleAt) {
			continue
		}

		q.handleSeq++
		m.receiveCount++
		m.handle = fmt.Sprintf("%s-%d", m.id, q.handleSeq)
		m.visibleAt = now.Add(q.visibility)

		result = append(result, &types.QueueMessage{
			MessageID:        m.id,
			ReceiptHandle:    m.handle,
			Body:             m.body,
			ReceiveCount:     m.receiveCount,
			ReceiveTimestamp: now,
		})
	}

	q.mu.Unlock()

	if len(result) == 0 {
		// Short stand-in for the long poll.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}

	return result, nil
}

func (q *fakeQueue) lookup(handle string) (*fakeMessage, error) {
	for _, m := range q.messages {
		if m.handle != handle {
			continue
		}

		if m.deleted || !q.clock.Now().Before(m.visibleAt) {
			return nil, fmt.Errorf("%w: handle %s", types.ErrStaleHandle, handle)
		}

		return m, nil
	}

	return nil, fmt.Errorf("%w: unknown handle %s", types.ErrStaleHandle, handle)
}

func (q *fakeQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.deleteCalls++

	if q.deleteErr != nil {
		return q.deleteErr
	}

	m, err := q.lookup(receiptHandle)
	if err != nil {
		return err
	}

	m.deleted = true
	q.deletes[m.id]++

	return nil
}

func (q *fakeQueue) ExtendVisibility(_ context.Context, receiptHandle string, seconds int32) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.extendCalls++

	m, err := q.lookup(receiptHandle)
	if err != nil {
		return err
	}

	m.visibleAt = q.clock.Now().Add(time.Duration(seconds) * time.Second)
	q.extensions[m.id] = append(q.extensions[m.id], seconds)

	return nil
}

func (q *fakeQueue) deleteCount(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.deletes[id]
}

func (q *fakeQueue) receiveCount(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, m := range q.messages {
		if m.id == id {
			return m.receiveCount
		}
	}

	return 0
}

func (q *fakeQueue) calls() (receives, deletes, extends int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.receiveCalls, q.deleteCalls, q.extendCalls
}

type fakeTable struct {
	mu         sync.Mutex
	records    map[string]map[string]any
	upserts    int
	upsertFunc func(ctx context.Context, call int, requestID string) error
}

func newFakeTable() *fakeTable {
	return &fakeTable{records: make(map[string]map[string]any)}
}

func (t *fakeTable) Upsert(ctx context.Context, requestID string, payload map[string]any) error {
	t.mu.Lock()
	t.upserts++
	call := t.upserts
	f := t.upsertFunc
	t.mu.Unlock()

	if f != nil {
		if err := f(ctx, call, requestID); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.records[requestID] = payload

	return nil
}

func (t *fakeTable) snapshot() (map[string]map[string]any, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	records := make(map[string]map[string]any, len(t.records))
	for k, v := range t.records {
		records[k] = v
	}

	return records, t.upserts
}

type fakeSink struct {
	mu        sync.Mutex
	forwarded []string
	reasons   []error
	err       error
}

func (s *fakeSink) Forward(_ context.Context, msg *types.QueueMessage, reason error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	s.forwarded = append(s.forwarded, msg.MessageID)
	s.reasons = append(s.reasons, reason)

	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.forwarded)
}

type fakeArchive struct {
	mu     sync.Mutex
	stored []string
	err    error
}

func (a *fakeArchive) Store(_ context.Context, req *types.WidgetRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.err != nil {
		return a.err
	}

	a.stored = append(a.stored, req.RequestID)

	return nil
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)

	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(2 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", msg)
}
