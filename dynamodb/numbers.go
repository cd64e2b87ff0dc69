package dynamodb

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// toAttributeNumbers returns a copy of v in which every json.Number is an
// attributevalue.Number, so that it is stored as an N attribute with its
// exact decimal text instead of as a string.
func toAttributeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		return attributevalue.Number(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = toAttributeNumbers(e)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toAttributeNumbers(e)
		}

		return out
	default:
		return v
	}
}

// fromAttributeNumbers is the inverse of toAttributeNumbers for values read
// with UseNumber.
func fromAttributeNumbers(v any) any {
	switch t := v.(type) {
	case attributevalue.Number:
		return json.Number(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromAttributeNumbers(e)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromAttributeNumbers(e)
		}

		return out
	default:
		return v
	}
}
