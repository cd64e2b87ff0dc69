package types

import "strconv"

// Attribute names attached to messages forwarded to a DeadLetterSink.
const (
	AttrDeadLetterReason = "dead_letter_reason"
	AttrSourceMessageID  = "source_message_id"
	AttrReceiveCount     = "receive_count"
)

// MaxDeadLetterReasonLength bounds the reason attribute. Wrapped SDK errors
// can carry large request dumps.
const MaxDeadLetterReasonLength = 1024

// DeadLetterAttributes returns the metadata sinks attach to a forwarded
// message. Empty message IDs and nil reasons are omitted.
func DeadLetterAttributes(msg *QueueMessage, reason error) map[string]string {
	attrs := map[string]string{
		AttrReceiveCount: strconv.Itoa(msg.ReceiveCount),
	}

	if msg.MessageID != "" {
		attrs[AttrSourceMessageID] = msg.MessageID
	}

	if reason != nil {
		attrs[AttrDeadLetterReason] = truncate(reason.Error(), MaxDeadLetterReasonLength)
	}

	return attrs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}
