// Package pubsub provides a Google Cloud Pub/Sub dead-letter side channel
// for the widget consumer.
//
// [DeadLetterTopic] implements
// [github.com/slackmgr/widget-consumer/types.DeadLetterSink]. Dead-letter
// targets are written as "pubsub://<project>/<topic>"; use [ParseTarget] to
// obtain the project for the GCP client and the topic to publish to:
//
//	project, topic, err := pubsub.ParseTarget(target)
//	gcp, err := gcppubsub.NewClient(ctx, project)
//	sink, err := pubsub.NewDeadLetterTopic(gcp, topic, logger)
//	sink, err = sink.Init()
//	defer sink.Close()
//
// Each forwarded message carries the original body and the
// dead_letter_reason, source_message_id and receive_count attributes.
// Forward blocks until the publish result is available.
package pubsub
