//nolint:nilnil
package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/slackmgr/widget-consumer/types"
)

const (
	// PartitionKey is the DynamoDB partition key attribute name. The table
	// has no sort key.
	PartitionKey = "request_id"

	// PayloadAttr holds the widget payload as a DynamoDB map.
	PayloadAttr = "payload"

	// PayloadDigestAttr holds the SHA-256 digest of the canonical payload
	// JSON. It decides whether a repeated write changes anything.
	PayloadDigestAttr = "payload_digest"

	// WrittenAtAttr holds the RFC 3339 time of the last effective write.
	WrittenAtAttr = "written_at"

	// TTLAttr is the attribute name used for DynamoDB TTL-based expiration.
	// It is only written when [WithTimeToLive] is set.
	TTLAttr = "ttl"

	// maxBackoff is the maximum backoff duration for retry loops.
	maxBackoff = 2 * time.Second
)

// widgetItem is the DynamoDB representation of a [types.WidgetRecord].
type widgetItem struct {
	RequestID     string         `dynamodbav:"request_id"`
	Payload       map[string]any `dynamodbav:"payload"`
	PayloadDigest string         `dynamodbav:"payload_digest"`
	WrittenAt     string         `dynamodbav:"written_at"`
	TTL           int64          `dynamodbav:"ttl,omitempty"`
}

// Client is a DynamoDB-backed implementation of [types.Table]. Each widget
// is one item keyed by its request ID.
//
// Use [New] to create a Client, [Client.Connect] to initialize the underlying
// DynamoDB connection, and [Client.Init] to validate the table schema.
type Client struct {
	client    API
	tableName string
	awsCfg    *aws.Config
	opts      *Options
}

// New creates a new Client configured with the given AWS config, table name,
// and optional options. Call [Client.Connect] on the returned client before use.
func New(awsCfg *aws.Config, tableName string, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		tableName: tableName,
		opts:      options,
	}
}

// Connect initializes the DynamoDB client from the AWS config provided to [New].
// It must be called before any other Client methods, and must complete before
// the Client is used concurrently.
func (c *Client) Connect() error {
	if c.tableName == "" {
		return fmt.Errorf("%w: DynamoDB table name cannot be empty", types.ErrFatalConfig)
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("%w: invalid DynamoDB options: %w", types.ErrFatalConfig, err)
	}

	// Use injected DynamoDB API if provided (useful for testing).
	if c.opts.dynamoDBAPI != nil {
		c.client = c.opts.dynamoDBAPI
	} else {
		c.client = dynamodb.NewFromConfig(*c.awsCfg)
	}

	return nil
}

// TableName returns the name of the widgets table.
func (c *Client) TableName() string {
	return c.tableName
}

// Init validates the DynamoDB table schema. It checks that the table exists,
// is active, and has a simple primary key on request_id. When a TTL is
// configured it also checks that TTL is enabled on the ttl attribute.
// Every failure wraps [types.ErrFatalConfig].
//
// Pass skipSchemaValidation true to skip all checks and return immediately,
// which is useful when schema validation is managed separately.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	}

	response, err := c.client.DescribeTable(ctx, input)
	if err != nil {
		var notFoundError *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFoundError) {
			return fmt.Errorf("%w: table %s does not exist", types.ErrFatalConfig, c.tableName)
		}
		return fmt.Errorf("%w: failed to describe table %s: %w", types.ErrFatalConfig, c.tableName, err)
	}

	if response.Table == nil {
		return fmt.Errorf("%w: table %s has no description", types.ErrFatalConfig, c.tableName)
	}

	if len(response.Table.KeySchema) != 1 {
		return fmt.Errorf("%w: table %s has %d key attributes, expected a simple primary key", types.ErrFatalConfig, c.tableName, len(response.Table.KeySchema))
	}

	key := response.Table.KeySchema[0]

	if aws.ToString(key.AttributeName) != PartitionKey || key.KeyType != dynamodbtypes.KeyTypeHash {
		return fmt.Errorf("%w: table %s has partition key %s, expected %s", types.ErrFatalConfig, c.tableName, aws.ToString(key.AttributeName), PartitionKey)
	}

	if err := verifyAttributeType(response.Table, PartitionKey, dynamodbtypes.ScalarAttributeTypeS); err != nil {
		return fmt.Errorf("%w: %w", types.ErrFatalConfig, err)
	}

	if response.Table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("%w: table %s is not active (status: %s)", types.ErrFatalConfig, c.tableName, response.Table.TableStatus)
	}

	if c.opts.timeToLive == 0 {
		return nil
	}

	ttlInput := &dynamodb.DescribeTimeToLiveInput{
		TableName: aws.String(c.tableName),
	}

	ttlResponse, err := c.client.DescribeTimeToLive(ctx, ttlInput)
	if err != nil {
		return fmt.Errorf("%w: failed to describe TTL of table %s: %w", types.ErrFatalConfig, c.tableName, err)
	}

	if ttlResponse.TimeToLiveDescription == nil {
		return fmt.Errorf("%w: table %s has no TTL description", types.ErrFatalConfig, c.tableName)
	}

	if ttlResponse.TimeToLiveDescription.TimeToLiveStatus != dynamodbtypes.TimeToLiveStatusEnabled {
		return fmt.Errorf("%w: table %s has TTL status %s (expected %s)", types.ErrFatalConfig, c.tableName, ttlResponse.TimeToLiveDescription.TimeToLiveStatus, dynamodbtypes.TimeToLiveStatusEnabled)
	}

	if aws.ToString(ttlResponse.TimeToLiveDescription.AttributeName) != TTLAttr {
		return fmt.Errorf("%w: TTL attribute name for table %s is %s, expected %s", types.ErrFatalConfig, c.tableName, aws.ToString(ttlResponse.TimeToLiveDescription.AttributeName), TTLAttr)
	}

	return nil
}

// Upsert writes the widget for requestID. The put is conditional on the item
// being absent or holding a different payload digest, so redelivering the
// same request leaves the item (including written_at) untouched. A failed
// condition therefore means the write already happened and is not an error.
//
// Errors wrap [types.ErrFatalWrite] when DynamoDB rejects the item itself
// and [types.ErrTransientWrite] otherwise.
func (c *Client) Upsert(ctx context.Context, requestID string, payload map[string]any) error {
	now := c.opts.clock()

	record, err := types.NewWidgetRecord(requestID, payload, now)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrFatalWrite, err)
	}

	item := widgetItem{
		RequestID:     record.RequestID,
		Payload:       map[string]any{},
		PayloadDigest: record.PayloadDigest,
		WrittenAt:     record.WrittenAt.Format(time.RFC3339Nano),
	}

	if payload != nil {
		item.Payload, _ = toAttributeNumbers(payload).(map[string]any)
	}

	if c.opts.timeToLive > 0 {
		item.TTL = now.Add(c.opts.timeToLive).Unix()
	}

	attributes, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal widget %s: %w", types.ErrFatalWrite, requestID, err)
	}

	cond := expression.AttributeNotExists(expression.Name(PartitionKey)).
		Or(expression.Name(PayloadDigestAttr).NotEqual(expression.Value(record.PayloadDigest)))

	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("%w: failed to build condition expression: %w", types.ErrFatalWrite, err)
	}

	input := &dynamodb.PutItemInput{
		TableName:                 &c.tableName,
		Item:                      attributes,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		if isConditionalCheckFailed(err) {
			return nil
		}

		return classifyWriteError(err, "failed to write widget %s to DynamoDB table %s", requestID, c.tableName)
	}

	return nil
}

// FindWidget returns the stored widget for requestID, or nil if there is none.
// The read is strongly consistent.
func (c *Client) FindWidget(ctx context.Context, requestID string) (*types.WidgetRecord, error) {
	if requestID == "" {
		return nil, errors.New("request ID cannot be empty")
	}

	input := &dynamodb.GetItemInput{
		TableName: &c.tableName,
		Key: map[string]dynamodbtypes.AttributeValue{
			PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: requestID},
		},
		ConsistentRead: aws.Bool(true),
	}

	output, err := c.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to read widget %s from DynamoDB table %s: %w", requestID, c.tableName, err)
	}

	if len(output.Item) == 0 {
		return nil, nil
	}

	var item widgetItem

	err = attributevalue.UnmarshalMapWithOptions(output.Item, &item, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal widget %s: %w", requestID, err)
	}

	payload, err := json.Marshal(fromAttributeNumbers(item.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of widget %s: %w", requestID, err)
	}

	writtenAt, err := time.Parse(time.RFC3339Nano, item.WrittenAt)
	if err != nil {
		return nil, fmt.Errorf("invalid %s on widget %s: %w", WrittenAtAttr, requestID, err)
	}

	return &types.WidgetRecord{
		RequestID:     item.RequestID,
		Payload:       payload,
		PayloadDigest: item.PayloadDigest,
		WrittenAt:     writtenAt,
	}, nil
}

// DropAllData deletes every item from the DynamoDB table. It scans the table
// in pages and removes each page using BatchWriteItem with exponential backoff
// for unprocessed items.
//
// This method is intended for use in tests only. Do not call it in production.
func (c *Client) DropAllData(ctx context.Context) error {
	input := &dynamodb.ScanInput{
		TableName:            aws.String(c.tableName),
		ProjectionExpression: aws.String(PartitionKey),
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := c.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan DynamoDB table %s: %w", c.tableName, err)
		}

		// Process items in batches of 25 (DynamoDB BatchWriteItem limit).
		for i := 0; i < len(output.Items); i += 25 {
			end := min(i+25, len(output.Items))

			if err := c.deleteBatch(ctx, output.Items[i:end]); err != nil {
				return err
			}
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return nil
}

func (c *Client) deleteBatch(ctx context.Context, batch []map[string]dynamodbtypes.AttributeValue) error {
	requestItems := make([]dynamodbtypes.WriteRequest, 0, len(batch))

	for _, item := range batch {
		requestItems = append(requestItems, dynamodbtypes.WriteRequest{
			DeleteRequest: &dynamodbtypes.DeleteRequest{
				Key: map[string]dynamodbtypes.AttributeValue{
					PartitionKey: item[PartitionKey],
				},
			},
		})
	}

	batchInput := &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]dynamodbtypes.WriteRequest{
			c.tableName: requestItems,
		},
	}

	// Retry with exponential backoff for unprocessed items.
	const maxRetries = 5
	backoff := 50 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		batchResult, err := c.client.BatchWriteItem(ctx, batchInput)
		if err != nil {
			return fmt.Errorf("failed to batch delete items from DynamoDB table %s: %w", c.tableName, err)
		}

		if len(batchResult.UnprocessedItems) == 0 {
			return nil
		}

		if attempt == maxRetries {
			return fmt.Errorf("%d unprocessed items after %d retries in DropAllData",
				len(batchResult.UnprocessedItems[c.tableName]), maxRetries)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
		batchInput.RequestItems = batchResult.UnprocessedItems
	}

	return nil
}

func verifyAttributeType(table *dynamodbtypes.TableDescription, name string, expected dynamodbtypes.ScalarAttributeType) error {
	for _, def := range table.AttributeDefinitions {
		if aws.ToString(def.AttributeName) != name {
			continue
		}

		if def.AttributeType != expected {
			return fmt.Errorf("attribute %s of table %s has type %s, expected %s", name, aws.ToString(table.TableName), def.AttributeType, expected)
		}

		return nil
	}

	return fmt.Errorf("attribute %s is not defined on table %s", name, aws.ToString(table.TableName))
}
