// Package decoder turns raw queue message bodies into validated widget
// requests.
//
// A body is a JSON object carrying at least a non-empty string "request_id"
// and an object "payload". An optional "type" string defaults to "create".
// Unknown fields are ignored. Every failure is a [types.DecodeError], which
// the consumer treats as terminal for the message.
package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/slackmgr/widget-consumer/types"
	"gopkg.in/go-playground/validator.v9"
)

// MaxRequestIDLength is the longest accepted request_id, in bytes. It matches
// the DynamoDB partition key size limit.
const MaxRequestIDLength = 1024

// UnknownOwner is the owner slug used when a payload carries no owner.
const UnknownOwner = "unknown"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// envelope is the wire shape of a widget request. Payload stays raw until
// the envelope has been validated so that its JSON type can be checked.
type envelope struct {
	RequestID *string         `json:"request_id" validate:"required"`
	Type      *string         `json:"type"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
}

type validatedFields struct {
	RequestID string `validate:"required"`
	Type      string `validate:"omitempty,max=64"`
}

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})

	return validate
}

// Decode parses msg.Body into a WidgetRequest and copies the lease details
// (message ID, receipt handle, receive count) from msg.
func Decode(msg *types.QueueMessage) (*types.WidgetRequest, error) {
	if msg == nil {
		return nil, &types.DecodeError{Reason: "message cannot be nil"}
	}

	body := bytes.TrimSpace([]byte(msg.Body))

	if len(body) == 0 {
		return nil, &types.DecodeError{Reason: "message body is empty"}
	}

	if body[0] != '{' {
		return nil, &types.DecodeError{Reason: "message body is not a JSON object"}
	}

	var env envelope

	if err := json.Unmarshal(body, &env); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &types.DecodeError{Field: typeErr.Field, Reason: "unexpected JSON type " + typeErr.Value}
		}

		return nil, &types.DecodeError{Reason: "invalid JSON", Err: err}
	}

	if err := validatorInstance().Struct(&env); err != nil {
		return nil, fieldError(err)
	}

	fields := validatedFields{RequestID: strings.TrimSpace(*env.RequestID)}
	if env.Type != nil {
		fields.Type = strings.ToLower(strings.TrimSpace(*env.Type))
	}

	if err := validatorInstance().Struct(&fields); err != nil {
		return nil, fieldError(err)
	}

	if len(fields.RequestID) > MaxRequestIDLength {
		return nil, &types.DecodeError{Field: "request_id", Reason: fmt.Sprintf("longer than %d bytes", MaxRequestIDLength)}
	}

	payload, err := decodePayload(env.Payload)
	if err != nil {
		return nil, err
	}

	requestType := fields.Type
	if requestType == "" {
		requestType = types.RequestTypeCreate
	}

	return &types.WidgetRequest{
		RequestID:     fields.RequestID,
		Type:          requestType,
		Payload:       payload,
		ReceiptHandle: msg.ReceiptHandle,
		MessageID:     msg.MessageID,
		ReceiveCount:  msg.ReceiveCount,
	}, nil
}

func decodePayload(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &types.DecodeError{Field: "payload", Reason: "must be a JSON object"}
	}

	var payload map[string]any

	// Numbers stay json.Number so that integers beyond float64 precision
	// are stored exactly.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if err := dec.Decode(&payload); err != nil {
		return nil, &types.DecodeError{Field: "payload", Reason: "invalid JSON object", Err: err}
	}

	return payload, nil
}

func fieldError(err error) error {
	var validationErrors validator.ValidationErrors

	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return &types.DecodeError{
			Field:  jsonFieldName(fe.Field()),
			Reason: fmt.Sprintf("failed %q validation", fe.Tag()),
		}
	}

	return &types.DecodeError{Reason: "validation failed", Err: err}
}

func jsonFieldName(structField string) string {
	switch structField {
	case "RequestID":
		return "request_id"
	case "Payload":
		return "payload"
	case "Type":
		return "type"
	default:
		return structField
	}
}

// OwnerSlug derives a path-safe owner segment from payload["owner"]: trimmed,
// lower-cased, with spaces replaced by dashes and slashes removed. It returns
// [UnknownOwner] when the owner is missing or not a string.
func OwnerSlug(payload map[string]any) string {
	owner, ok := payload["owner"].(string)
	if !ok {
		return UnknownOwner
	}

	slug := strings.ToLower(strings.TrimSpace(owner))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "/", "")

	if slug == "" {
		return UnknownOwner
	}

	return slug
}
