package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by all components. Adapters wrap the underlying
// cause together with one of these sentinels, so callers classify with
// errors.Is and still see the original error text.
var (
	// ErrFatalConfig marks a bad region, queue or table reference detected at
	// startup. The process exits.
	ErrFatalConfig = errors.New("fatal configuration error")

	// ErrTransientQueue marks a retryable queue failure (network, throttling,
	// service errors).
	ErrTransientQueue = errors.New("transient queue error")

	// ErrFatalQueue marks a non-retryable queue failure, such as the queue
	// no longer existing.
	ErrFatalQueue = errors.New("fatal queue error")

	// ErrStaleHandle is returned when a receipt handle belongs to a lease that
	// has already expired. It is an expected race and is never fatal.
	ErrStaleHandle = errors.New("stale receipt handle")

	// ErrDecode marks a message body that can never be processed.
	ErrDecode = errors.New("decode error")

	// ErrTransientWrite marks a retryable table write failure.
	ErrTransientWrite = errors.New("transient write error")

	// ErrFatalWrite marks a write the store will never accept.
	ErrFatalWrite = errors.New("fatal write error")
)

// DecodeError describes why a queue message body could not be turned into a
// WidgetRequest. It matches ErrDecode.
type DecodeError struct {
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode error"

	if e.Field != "" {
		msg += " on field " + e.Field
	}

	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// Wrap annotates err with a taxonomy sentinel and a short description.
// It returns nil when err is nil.
func Wrap(sentinel error, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %s: %w", sentinel, fmt.Sprintf(format, args...), err)
}

// IsDeadLetter reports whether err means the message can never succeed and
// must be removed from normal processing.
func IsDeadLetter(err error) bool {
	return errors.Is(err, ErrDecode) || errors.Is(err, ErrFatalWrite)
}
