package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/slackmgr/widget-consumer/types"
)

// mockAPI is a mock implementation of API for testing.
type mockAPI struct {
	putItemFunc            func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	getItemFunc            func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	scanFunc               func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	batchWriteItemFunc     func(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	describeTableFunc      func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	describeTimeToLiveFunc func(ctx context.Context, params *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error)
}

func (m *mockAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockAPI) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if m.scanFunc != nil {
		return m.scanFunc(ctx, params, optFns...)
	}
	return &dynamodb.ScanOutput{}, nil
}

func (m *mockAPI) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if m.batchWriteItemFunc != nil {
		return m.batchWriteItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (m *mockAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.describeTableFunc != nil {
		return m.describeTableFunc(ctx, params, optFns...)
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (m *mockAPI) DescribeTimeToLive(ctx context.Context, params *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
	if m.describeTimeToLiveFunc != nil {
		return m.describeTimeToLiveFunc(ctx, params, optFns...)
	}
	return &dynamodb.DescribeTimeToLiveOutput{}, nil
}

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, mock *mockAPI, opts ...Option) *Client {
	t.Helper()

	opts = append([]Option{WithAPI(mock), WithClock(func() time.Time { return fixedTime })}, opts...)

	c := New(&aws.Config{}, "widgets", opts...)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	return c
}

func validTableDescription() *dynamodb.DescribeTableOutput {
	return &dynamodb.DescribeTableOutput{
		Table: &dynamodbtypes.TableDescription{
			TableName:   aws.String("widgets"),
			TableStatus: dynamodbtypes.TableStatusActive,
			KeySchema: []dynamodbtypes.KeySchemaElement{
				{AttributeName: aws.String(PartitionKey), KeyType: dynamodbtypes.KeyTypeHash},
			},
			AttributeDefinitions: []dynamodbtypes.AttributeDefinition{
				{AttributeName: aws.String(PartitionKey), AttributeType: dynamodbtypes.ScalarAttributeTypeS},
			},
		},
	}
}

func TestConnect_Success(t *testing.T) {
	c := New(&aws.Config{}, "widgets", WithAPI(&mockAPI{}))

	if err := c.Connect(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if c.client == nil {
		t.Error("expected client to be set")
	}

	if c.TableName() != "widgets" {
		t.Errorf("expected table name 'widgets', got %q", c.TableName())
	}
}

func TestConnect_InvalidOptions(t *testing.T) {
	tests := []struct {
		name      string
		tableName string
		opts      []Option
	}{
		{"empty table name", "", nil},
		{"negative ttl", "widgets", []Option{WithTimeToLive(-time.Hour)}},
		{"ttl too short", "widgets", []Option{WithTimeToLive(time.Minute)}},
		{"nil clock", "widgets", []Option{WithClock(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&aws.Config{}, tt.tableName, append(tt.opts, WithAPI(&mockAPI{}))...)

			err := c.Connect()

			if !errors.Is(err, types.ErrFatalConfig) {
				t.Errorf("expected ErrFatalConfig, got %v", err)
			}
		})
	}
}

func TestInit_SkipSchemaValidation(t *testing.T) {
	mock := &mockAPI{
		describeTableFunc: func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			t.Fatal("DescribeTable must not be called")
			return nil, nil
		},
	}

	c := newTestClient(t, mock)

	if err := c.Init(context.Background(), true); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestInit_Success(t *testing.T) {
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, input *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			if aws.ToString(input.TableName) != "widgets" {
				t.Errorf("unexpected table name %q", aws.ToString(input.TableName))
			}
			return validTableDescription(), nil
		},
		describeTimeToLiveFunc: func(context.Context, *dynamodb.DescribeTimeToLiveInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
			t.Fatal("DescribeTimeToLive must not be called without a TTL")
			return nil, nil
		},
	}

	c := newTestClient(t, mock)

	if err := c.Init(context.Background(), false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestInit_SchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*dynamodb.DescribeTableOutput)
	}{
		{"no description", func(o *dynamodb.DescribeTableOutput) { o.Table = nil }},
		{"composite key", func(o *dynamodb.DescribeTableOutput) {
			o.Table.KeySchema = append(o.Table.KeySchema, dynamodbtypes.KeySchemaElement{AttributeName: aws.String("sk"), KeyType: dynamodbtypes.KeyTypeRange})
		}},
		{"wrong partition key", func(o *dynamodb.DescribeTableOutput) { o.Table.KeySchema[0].AttributeName = aws.String("pk") }},
		{"numeric partition key", func(o *dynamodb.DescribeTableOutput) {
			o.Table.AttributeDefinitions[0].AttributeType = dynamodbtypes.ScalarAttributeTypeN
		}},
		{"missing attribute definition", func(o *dynamodb.DescribeTableOutput) { o.Table.AttributeDefinitions = nil }},
		{"not active", func(o *dynamodb.DescribeTableOutput) { o.Table.TableStatus = dynamodbtypes.TableStatusCreating }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockAPI{
				describeTableFunc: func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
					out := validTableDescription()
					tt.modify(out)
					return out, nil
				},
			}

			c := newTestClient(t, mock)

			err := c.Init(context.Background(), false)

			if !errors.Is(err, types.ErrFatalConfig) {
				t.Errorf("expected ErrFatalConfig, got %v", err)
			}
		})
	}
}

func TestInit_TableNotFound(t *testing.T) {
	mock := &mockAPI{
		describeTableFunc: func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, &dynamodbtypes.ResourceNotFoundException{Message: aws.String("Requested resource not found")}
		},
	}

	c := newTestClient(t, mock)

	err := c.Init(context.Background(), false)

	if !errors.Is(err, types.ErrFatalConfig) {
		t.Fatalf("expected ErrFatalConfig, got %v", err)
	}

	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("expected 'does not exist' in error, got %v", err)
	}
}

func TestInit_TimeToLive(t *testing.T) {
	tests := []struct {
		name    string
		output  *dynamodb.DescribeTimeToLiveOutput
		err     error
		wantErr bool
	}{
		{
			name: "enabled",
			output: &dynamodb.DescribeTimeToLiveOutput{TimeToLiveDescription: &dynamodbtypes.TimeToLiveDescription{
				TimeToLiveStatus: dynamodbtypes.TimeToLiveStatusEnabled,
				AttributeName:    aws.String(TTLAttr),
			}},
		},
		{
			name:    "no description",
			output:  &dynamodb.DescribeTimeToLiveOutput{},
			wantErr: true,
		},
		{
			name: "disabled",
			output: &dynamodb.DescribeTimeToLiveOutput{TimeToLiveDescription: &dynamodbtypes.TimeToLiveDescription{
				TimeToLiveStatus: dynamodbtypes.TimeToLiveStatusDisabled,
			}},
			wantErr: true,
		},
		{
			name: "wrong attribute",
			output: &dynamodb.DescribeTimeToLiveOutput{TimeToLiveDescription: &dynamodbtypes.TimeToLiveDescription{
				TimeToLiveStatus: dynamodbtypes.TimeToLiveStatusEnabled,
				AttributeName:    aws.String("expires_at"),
			}},
			wantErr: true,
		},
		{
			name:    "api error",
			err:     errors.New("access denied"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockAPI{
				describeTableFunc: func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
					return validTableDescription(), nil
				},
				describeTimeToLiveFunc: func(context.Context, *dynamodb.DescribeTimeToLiveInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
					return tt.output, tt.err
				},
			}

			c := newTestClient(t, mock, WithTimeToLive(24*time.Hour))

			err := c.Init(context.Background(), false)

			if tt.wantErr && !errors.Is(err, types.ErrFatalConfig) {
				t.Errorf("expected ErrFatalConfig, got %v", err)
			}

			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestUpsert_Success(t *testing.T) {
	var captured *dynamodb.PutItemInput

	mock := &mockAPI{
		putItemFunc: func(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			captured = input
			return &dynamodb.PutItemOutput{}, nil
		},
	}

	c := newTestClient(t, mock)

	if err := c.Upsert(context.Background(), "w-1", map[string]any{"name": "gizmo"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if aws.ToString(captured.TableName) != "widgets" {
		t.Errorf("expected table 'widgets', got %q", aws.ToString(captured.TableName))
	}

	key, ok := captured.Item[PartitionKey].(*dynamodbtypes.AttributeValueMemberS)
	if !ok || key.Value != "w-1" {
		t.Errorf("unexpected partition key attribute: %#v", captured.Item[PartitionKey])
	}

	payload, ok := captured.Item[PayloadAttr].(*dynamodbtypes.AttributeValueMemberM)
	if !ok {
		t.Fatalf("expected payload to be a map attribute, got %#v", captured.Item[PayloadAttr])
	}

	if name, ok := payload.Value["name"].(*dynamodbtypes.AttributeValueMemberS); !ok || name.Value != "gizmo" {
		t.Errorf("unexpected payload name: %#v", payload.Value["name"])
	}

	record, _ := types.NewWidgetRecord("w-1", map[string]any{"name": "gizmo"}, fixedTime)

	digest, ok := captured.Item[PayloadDigestAttr].(*dynamodbtypes.AttributeValueMemberS)
	if !ok || digest.Value != record.PayloadDigest {
		t.Errorf("unexpected digest attribute: %#v", captured.Item[PayloadDigestAttr])
	}

	writtenAt, ok := captured.Item[WrittenAtAttr].(*dynamodbtypes.AttributeValueMemberS)
	if !ok || writtenAt.Value != fixedTime.Format(time.RFC3339Nano) {
		t.Errorf("unexpected written_at attribute: %#v", captured.Item[WrittenAtAttr])
	}

	if _, ok := captured.Item[TTLAttr]; ok {
		t.Error("expected no ttl attribute without WithTimeToLive")
	}

	condition := aws.ToString(captured.ConditionExpression)
	if !strings.Contains(condition, "attribute_not_exists") || !strings.Contains(condition, "<>") {
		t.Errorf("unexpected condition expression %q", condition)
	}

	foundDigest := false

	for _, v := range captured.ExpressionAttributeValues {
		if s, ok := v.(*dynamodbtypes.AttributeValueMemberS); ok && s.Value == record.PayloadDigest {
			foundDigest = true
		}
	}

	if !foundDigest {
		t.Error("expected the payload digest among the expression values")
	}
}

func TestUpsert_StoresExactNumbers(t *testing.T) {
	var captured *dynamodb.PutItemInput

	mock := &mockAPI{
		putItemFunc: func(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			captured = input
			return &dynamodb.PutItemOutput{}, nil
		},
	}

	c := newTestClient(t, mock)

	payload := map[string]any{
		"serial": json.Number("9007199254740993"),
		"parts":  []any{json.Number("18446744073709551615")},
	}

	if err := c.Upsert(context.Background(), "w-1", payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stored, ok := captured.Item[PayloadAttr].(*dynamodbtypes.AttributeValueMemberM)
	if !ok {
		t.Fatalf("expected payload to be a map attribute, got %#v", captured.Item[PayloadAttr])
	}

	serial, ok := stored.Value["serial"].(*dynamodbtypes.AttributeValueMemberN)
	if !ok || serial.Value != "9007199254740993" {
		t.Errorf("expected exact numeric serial, got %#v", stored.Value["serial"])
	}

	parts, ok := stored.Value["parts"].(*dynamodbtypes.AttributeValueMemberL)
	if !ok || len(parts.Value) != 1 {
		t.Fatalf("expected list attribute, got %#v", stored.Value["parts"])
	}

	if part, ok := parts.Value[0].(*dynamodbtypes.AttributeValueMemberN); !ok || part.Value != "18446744073709551615" {
		t.Errorf("expected exact numeric list element, got %#v", parts.Value[0])
	}

	if _, isNumber := payload["serial"].(json.Number); !isNumber {
		t.Error("expected the caller's payload to be left unchanged")
	}
}

func TestUpsert_TimeToLive(t *testing.T) {
	var captured *dynamodb.PutItemInput

	mock := &mockAPI{
		putItemFunc: func(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			captured = input
			return &dynamodb.PutItemOutput{}, nil
		},
	}

	c := newTestClient(t, mock, WithTimeToLive(48*time.Hour))

	if err := c.Upsert(context.Background(), "w-1", map[string]any{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	ttl, ok := captured.Item[TTLAttr].(*dynamodbtypes.AttributeValueMemberN)
	if !ok {
		t.Fatalf("expected numeric ttl attribute, got %#v", captured.Item[TTLAttr])
	}

	expected := strconv.FormatInt(fixedTime.Add(48*time.Hour).Unix(), 10)
	if ttl.Value != expected {
		t.Errorf("expected ttl %s, got %s", expected, ttl.Value)
	}
}

func TestUpsert_ConditionFailedIsNoop(t *testing.T) {
	mock := &mockAPI{
		putItemFunc: func(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			return nil, &dynamodbtypes.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		},
	}

	c := newTestClient(t, mock)

	if err := c.Upsert(context.Background(), "w-1", map[string]any{"name": "gizmo"}); err != nil {
		t.Errorf("expected duplicate write to succeed, got %v", err)
	}
}

func TestUpsert_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"validation", &smithy.GenericAPIError{Code: "ValidationException", Message: "Item size has exceeded the maximum allowed size"}, types.ErrFatalWrite},
		{"throughput", &dynamodbtypes.ProvisionedThroughputExceededException{}, types.ErrTransientWrite},
		{"request limit", &dynamodbtypes.RequestLimitExceeded{}, types.ErrTransientWrite},
		{"internal", &dynamodbtypes.InternalServerError{}, types.ErrTransientWrite},
		{"table deleted", &dynamodbtypes.ResourceNotFoundException{}, types.ErrTransientWrite},
		{"throttling", &smithy.GenericAPIError{Code: "ThrottlingException"}, types.ErrTransientWrite},
		{"network", errors.New("dial tcp: i/o timeout"), types.ErrTransientWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockAPI{
				putItemFunc: func(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
					return nil, tt.err
				},
			}

			c := newTestClient(t, mock)

			err := c.Upsert(context.Background(), "w-1", map[string]any{})

			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}

			if !errors.Is(err, tt.err) {
				t.Error("expected the original error to be preserved")
			}
		})
	}
}

func TestUpsert_InvalidInput(t *testing.T) {
	mock := &mockAPI{
		putItemFunc: func(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			t.Fatal("PutItem must not be called")
			return nil, nil
		},
	}

	c := newTestClient(t, mock)

	if err := c.Upsert(context.Background(), "", map[string]any{}); !errors.Is(err, types.ErrFatalWrite) {
		t.Errorf("expected ErrFatalWrite for empty request ID, got %v", err)
	}

	if err := c.Upsert(context.Background(), "w-1", map[string]any{"ch": make(chan int)}); !errors.Is(err, types.ErrFatalWrite) {
		t.Errorf("expected ErrFatalWrite for unmarshalable payload, got %v", err)
	}
}

func TestFindWidget_Found(t *testing.T) {
	record, _ := types.NewWidgetRecord("w-1", map[string]any{"name": "gizmo"}, fixedTime)

	mock := &mockAPI{
		getItemFunc: func(_ context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			if !aws.ToBool(input.ConsistentRead) {
				t.Error("expected a consistent read")
			}

			return &dynamodb.GetItemOutput{Item: map[string]dynamodbtypes.AttributeValue{
				PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: "w-1"},
				PayloadAttr: &dynamodbtypes.AttributeValueMemberM{Value: map[string]dynamodbtypes.AttributeValue{
					"name": &dynamodbtypes.AttributeValueMemberS{Value: "gizmo"},
				}},
				PayloadDigestAttr: &dynamodbtypes.AttributeValueMemberS{Value: record.PayloadDigest},
				WrittenAtAttr:     &dynamodbtypes.AttributeValueMemberS{Value: fixedTime.Format(time.RFC3339Nano)},
			}}, nil
		},
	}

	c := newTestClient(t, mock)

	got, err := c.FindWidget(context.Background(), "w-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got == nil {
		t.Fatal("expected a record")
	}

	if string(got.Payload) != `{"name":"gizmo"}` {
		t.Errorf("unexpected payload %s", got.Payload)
	}

	if got.PayloadDigest != record.PayloadDigest {
		t.Errorf("unexpected digest %s", got.PayloadDigest)
	}

	if !got.WrittenAt.Equal(fixedTime) {
		t.Errorf("unexpected written_at %v", got.WrittenAt)
	}
}

func TestFindWidget_ExactNumbers(t *testing.T) {
	mock := &mockAPI{
		getItemFunc: func(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: map[string]dynamodbtypes.AttributeValue{
				PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: "w-1"},
				PayloadAttr: &dynamodbtypes.AttributeValueMemberM{Value: map[string]dynamodbtypes.AttributeValue{
					"serial": &dynamodbtypes.AttributeValueMemberN{Value: "9007199254740993"},
				}},
				PayloadDigestAttr: &dynamodbtypes.AttributeValueMemberS{Value: "digest"},
				WrittenAtAttr:     &dynamodbtypes.AttributeValueMemberS{Value: fixedTime.Format(time.RFC3339Nano)},
			}}, nil
		},
	}

	c := newTestClient(t, mock)

	got, err := c.FindWidget(context.Background(), "w-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if string(got.Payload) != `{"serial":9007199254740993}` {
		t.Errorf("unexpected payload %s", got.Payload)
	}
}

func TestFindWidget_NotFound(t *testing.T) {
	c := newTestClient(t, &mockAPI{})

	got, err := c.FindWidget(context.Background(), "w-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got != nil {
		t.Errorf("expected nil record, got %+v", got)
	}
}

func TestFindWidget_Errors(t *testing.T) {
	mock := &mockAPI{
		getItemFunc: func(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return nil, errors.New("boom")
		},
	}

	c := newTestClient(t, mock)

	if _, err := c.FindWidget(context.Background(), ""); err == nil {
		t.Error("expected error for empty request ID")
	}

	if _, err := c.FindWidget(context.Background(), "w-1"); err == nil {
		t.Error("expected error from GetItem")
	}
}

func TestDropAllData(t *testing.T) {
	scans := 0
	batchCalls := 0
	deleted := 0

	mock := &mockAPI{
		scanFunc: func(_ context.Context, input *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
			scans++

			items := make([]map[string]dynamodbtypes.AttributeValue, 30)
			for i := range items {
				items[i] = map[string]dynamodbtypes.AttributeValue{
					PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: "w-" + strconv.Itoa(i)},
				}
			}

			if input.ExclusiveStartKey == nil {
				return &dynamodb.ScanOutput{Items: items, LastEvaluatedKey: items[29]}, nil
			}

			return &dynamodb.ScanOutput{Items: items[:5]}, nil
		},
		batchWriteItemFunc: func(_ context.Context, input *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
			batchCalls++
			requests := input.RequestItems["widgets"]

			if len(requests) > 25 {
				t.Errorf("batch of %d exceeds the DynamoDB limit", len(requests))
			}

			// First call leaves one item unprocessed.
			if batchCalls == 1 {
				deleted += len(requests) - 1
				return &dynamodb.BatchWriteItemOutput{
					UnprocessedItems: map[string][]dynamodbtypes.WriteRequest{"widgets": requests[:1]},
				}, nil
			}

			deleted += len(requests)

			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}

	c := newTestClient(t, mock)

	if err := c.DropAllData(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if scans != 2 {
		t.Errorf("expected 2 scans, got %d", scans)
	}

	if deleted != 35 {
		t.Errorf("expected 35 deleted items, got %d", deleted)
	}
}
