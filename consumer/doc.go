// Package consumer implements the widget request consumer loop.
//
// A [Consumer] long-polls a [github.com/slackmgr/widget-consumer/types.Queue]
// and hands each received message to a bounded pool of workers. Every
// message ends in one of four outcomes:
//
//   - [Success]: the request was upserted into the table, optionally
//     archived, and the message deleted.
//   - [Skip]: the request type needs no write; the message is deleted.
//   - [Retry]: a transient failure; the message is left on the queue and is
//     redelivered when its visibility timeout runs out. A [BackOff] may be
//     configured to stretch that timeout per receive count.
//   - [Failure]: the message can never succeed (malformed body, a write the
//     table rejects, or too many receives). It is forwarded to the optional
//     dead-letter sink and then deleted.
//
// While a message is being processed its lease is renewed in the
// background, up to a configured maximum. Before deleting, the consumer
// checks the lease locally; an expired lease means another consumer may
// already own the message, so the delete is skipped and the idempotent
// upsert absorbs the duplicate.
//
// Cancelling the context passed to [Consumer.Run] stops polling at once.
// Messages already in flight, and the rest of the batch that was being
// dispatched, are given the shutdown grace period to finish.
package consumer
