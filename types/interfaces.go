package types

import "context"

// Queue is the capability the consumer needs from the source queue.
// Implementations must be safe for concurrent use.
type Queue interface {
	// Receive long-polls for up to maxMessages messages, waiting at most
	// waitSeconds. An empty result is not an error.
	Receive(ctx context.Context, maxMessages, waitSeconds int32) ([]*QueueMessage, error)

	// Delete removes a message permanently. Returns ErrStaleHandle when the
	// lease behind receiptHandle has expired.
	Delete(ctx context.Context, receiptHandle string) error

	// ExtendVisibility resets the visibility timeout of a leased message to
	// seconds from now. Same staleness semantics as Delete.
	ExtendVisibility(ctx context.Context, receiptHandle string, seconds int32) error
}

// Table is the capability the consumer needs from the destination table.
// Upsert must be idempotent: repeated calls with the same requestID and
// payload converge to the same stored state.
type Table interface {
	Upsert(ctx context.Context, requestID string, payload map[string]any) error
}

// DeadLetterSink is an optional side channel receiving messages that were
// removed from normal processing.
type DeadLetterSink interface {
	Forward(ctx context.Context, msg *QueueMessage, reason error) error
}

// Archive is an optional secondary copy of committed widget requests.
type Archive interface {
	Store(ctx context.Context, req *WidgetRequest) error
}
