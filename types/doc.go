// Package types holds the contracts shared by the widget consumer
// components: the queue message and widget request models, the error
// taxonomy, the [Logger] interface and the capability interfaces ([Queue],
// [Table], [DeadLetterSink], [Archive]) that the consumer loop is written
// against.
package types
