package consumer

// Outcome is the final state of one processed message.
type Outcome string

const (
	// Success means the widget was written and the message deleted.
	Success Outcome = "success"

	// Skip means the request type needs no write; the message was deleted.
	Skip Outcome = "skip"

	// Retry means the message was left on the queue for redelivery.
	Retry Outcome = "retry"

	// Failure means the message can never succeed and was dead-lettered.
	Failure Outcome = "failure"
)
