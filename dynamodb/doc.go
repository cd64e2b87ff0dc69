// Package dynamodb provides a DynamoDB-backed implementation of the
// [github.com/slackmgr/widget-consumer/types.Table] interface.
//
// # Overview
//
// Every widget is one item with a simple primary key:
//
//   - request_id      partition key (S)
//   - payload         the widget payload (M)
//   - payload_digest  SHA-256 of the canonical payload JSON (S)
//   - written_at      time of the last effective write (S, RFC 3339)
//   - ttl             optional expiry (N, Unix seconds)
//
// [Client.Upsert] is a conditional PutItem: it only writes when the item is
// absent or its payload digest differs. Writing the same request twice
// leaves the table exactly as after the first write, so duplicate
// deliveries from the queue are harmless.
//
// # Getting Started
//
// Create a [Client] with [New], supplying an AWS config, the DynamoDB table
// name, and any [Option] values you need:
//
//	client := dynamodb.New(&awsCfg, tableName)
//
//	if err := client.Connect(); err != nil { ... }
//	if err := client.Init(ctx, false); err != nil { ... }
//
// By default, [Client.Connect] creates an AWS SDK v2 DynamoDB client from the
// supplied [aws.Config]. Supply [WithAPI] to inject a custom or mock
// implementation.
//
// # Errors
//
// Write errors wrap types.ErrFatalWrite for items DynamoDB rejects
// (ValidationException, which includes oversized items) and
// types.ErrTransientWrite for everything else, including throttling and a
// table that disappeared after startup.
//
// # Concurrency
//
// [Client] is safe for concurrent use by multiple goroutines.
package dynamodb
