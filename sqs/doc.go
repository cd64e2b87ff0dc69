// Package sqs provides the AWS SQS queue backend for the widget consumer.
//
// # Client
//
// [Client] implements [github.com/slackmgr/widget-consumer/types.Queue]
// against one queue identified by its URL. It long-polls with
// [Client.Receive], commits with [Client.Delete] and renews leases with
// [Client.ExtendVisibility]. The approximate receive count of every message
// is requested so that callers can bound redelivery.
//
// Create a client with [New] and initialise it with [Client.Init]:
//
//	client, err := sqs.New(&awsCfg, queueURL, logger,
//	    sqs.WithSqsVisibilityTimeout(60),
//	).Init(ctx)
//
// # Errors
//
// Every error returned after Init wraps one of the sentinels in the types
// package: a missing queue or denied access is ErrFatalQueue, throttling and
// network failures are ErrTransientQueue, and deleting or extending with the
// receipt handle of an expired lease is ErrStaleHandle. Init failures wrap
// ErrFatalConfig.
//
// # DeadLetterQueue
//
// [DeadLetterQueue] implements
// [github.com/slackmgr/widget-consumer/types.DeadLetterSink] by sending the
// original body of an unprocessable message to a second queue, with the
// reason and source message ID as message attributes. Both FIFO and standard
// queues are supported.
//
// # Configuration
//
// Both [Client] and [DeadLetterQueue] accept functional options that are
// passed to the constructor and take effect before Init is called. See the
// With* functions for available settings and their defaults.
package sqs
