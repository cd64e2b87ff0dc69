package sqs

import (
	"errors"
	"strings"

	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/slackmgr/widget-consumer/types"
)

// fatalQueueErrorCodes are API error codes that will not go away by retrying.
var fatalQueueErrorCodes = map[string]bool{
	"AWS.SimpleQueueService.NonExistentQueue": true,
	"QueueDoesNotExist":                       true,
	"AccessDenied":                            true,
	"AccessDeniedException":                   true,
	"InvalidAddress":                          true,
	"InvalidSecurity":                         true,
	"UnsupportedOperation":                    true,
}

// classifyQueueError maps an SQS API error to ErrFatalQueue or
// ErrTransientQueue.
func classifyQueueError(err error, op string) error {
	if err == nil {
		return nil
	}

	var notExist *sqstypes.QueueDoesNotExist
	if errors.As(err, &notExist) {
		return types.Wrap(types.ErrFatalQueue, err, "%s", op)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && fatalQueueErrorCodes[apiErr.ErrorCode()] {
		return types.Wrap(types.ErrFatalQueue, err, "%s", op)
	}

	return types.Wrap(types.ErrTransientQueue, err, "%s", op)
}

// classifyHandleError maps a delete or visibility change error. Errors caused
// by an expired lease become ErrStaleHandle; everything else is classified as
// a regular queue error.
func classifyHandleError(err error, op string) error {
	if err == nil {
		return nil
	}

	if isStaleHandleError(err) {
		return types.Wrap(types.ErrStaleHandle, err, "%s", op)
	}

	return classifyQueueError(err, op)
}

func isStaleHandleError(err error) bool {
	var invalidHandle *sqstypes.ReceiptHandleIsInvalid
	if errors.As(err, &invalidHandle) {
		return true
	}

	var notInflight *sqstypes.MessageNotInflight
	if errors.As(err, &notInflight) {
		return true
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "ReceiptHandleIsInvalid", "AWS.SimpleQueueService.MessageNotInflight", "MessageNotInflight":
		return true
	case "InvalidParameterValue":
		return strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "receipt handle")
	default:
		return false
	}
}
