// Package s3 archives committed widget requests to Amazon S3.
//
// [Archive] implements [github.com/slackmgr/widget-consumer/types.Archive].
// Each request is stored as a JSON document with its request ID, type and
// payload:
//
//	archive, err := s3.New(&awsCfg, "widget-archive", logger,
//	    s3.WithPrefix("widgets"),
//	).Init(ctx)
//
// Objects are grouped by owner: a payload with owner "Jane Doe" and request
// ID "w-1" is written to "widgets/jane-doe/w-1.json". Payloads without an
// owner go under "unknown".
package s3
