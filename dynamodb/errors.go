package dynamodb

import (
	"errors"

	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/slackmgr/widget-consumer/types"
)

// fatalWriteErrorCodes are API error codes for writes DynamoDB will never
// accept, no matter how often they are retried. Oversized items are
// reported as ValidationException.
var fatalWriteErrorCodes = map[string]bool{
	"ValidationException":                      true,
	"SerializationException":                   true,
	"ItemCollectionSizeLimitExceededException": true,
}

func isConditionalCheckFailed(err error) bool {
	var condErr *dynamodbtypes.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

// classifyWriteError maps a DynamoDB error to ErrFatalWrite or
// ErrTransientWrite. Throttling, capacity, internal and missing-table errors
// are all transient.
func classifyWriteError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && fatalWriteErrorCodes[apiErr.ErrorCode()] {
		return types.Wrap(types.ErrFatalWrite, err, format, args...)
	}

	return types.Wrap(types.ErrTransientWrite, err, format, args...)
}
