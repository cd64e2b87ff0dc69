package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RequestTypeCreate is the only request type that results in a table write.
// Other types are acknowledged and skipped.
const RequestTypeCreate = "create"

// QueueMessage is a message leased from the queue. ReceiptHandle is only
// valid for the current lease.
type QueueMessage struct {
	MessageID        string
	ReceiptHandle    string
	Body             string
	ReceiveCount     int
	ReceiveTimestamp time.Time
}

// WidgetRequest is one unit of work decoded from a QueueMessage.
type WidgetRequest struct {
	RequestID     string
	Type          string
	Payload       map[string]any
	ReceiptHandle string
	MessageID     string
	ReceiveCount  int
}

// IsCreate reports whether the request should be written to the table.
func (r *WidgetRequest) IsCreate() bool {
	return r.Type == "" || r.Type == RequestTypeCreate
}

// WidgetRecord is the stored representation of a widget, keyed by RequestID.
type WidgetRecord struct {
	RequestID     string          `json:"request_id"`
	Payload       json.RawMessage `json:"payload"`
	PayloadDigest string          `json:"payload_digest"`
	WrittenAt     time.Time       `json:"written_at"`
}

// NewWidgetRecord builds the stored form of a widget. The payload is
// serialized with sorted object keys, so the digest is stable across
// deliveries of the same request.
func NewWidgetRecord(requestID string, payload map[string]any, writtenAt time.Time) (*WidgetRecord, error) {
	if requestID == "" {
		return nil, errors.New("request ID cannot be empty")
	}

	if payload == nil {
		payload = map[string]any{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal widget payload: %w", err)
	}

	sum := sha256.Sum256(body)

	return &WidgetRecord{
		RequestID:     requestID,
		Payload:       body,
		PayloadDigest: hex.EncodeToString(sum[:]),
		WrittenAt:     writtenAt.UTC(),
	}, nil
}
