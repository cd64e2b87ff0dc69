package consumer

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// MaxVisibilityTimeoutSeconds is the largest visibility timeout SQS accepts.
const MaxVisibilityTimeoutSeconds = 43200

// BackOff defaults.
const (
	DefaultInitTimeoutSec = 5
	DefaultMaxTimeoutSec  = 300
	DefaultMultiplier     = 2.5
	DefaultRandFactor     = 0.3
)

/*
BackOff sets the visibility timeout of a message after a transient write
failure, so that each delivery attempt waits exponentially longer than the
previous one:

	InitTimeoutSec * Multiplier^(receiveCount-1)

capped at MaxTimeoutSec and then spread by ±RandFactor. With the defaults
(5, 300, 2.5, 0.3) the first retry waits roughly 5 seconds, the third 31,
and the sixth onwards 300.

A nil *BackOff on the consumer leaves the visibility timeout untouched and
the message reappears when its current lease runs out.
*/
type BackOff struct {
	InitTimeoutSec, MaxTimeoutSec uint16
	Multiplier, RandFactor        float64
}

// NewBackOff returns a BackOff with default values.
func NewBackOff() *BackOff {
	return &BackOff{
		InitTimeoutSec: DefaultInitTimeoutSec,
		MaxTimeoutSec:  DefaultMaxTimeoutSec,
		Multiplier:     DefaultMultiplier,
		RandFactor:     DefaultRandFactor,
	}
}

func (b *BackOff) validate() error {
	if b.InitTimeoutSec > MaxVisibilityTimeoutSeconds {
		return errors.New("backoff initial timeout exceeds 43200 seconds")
	}

	if b.MaxTimeoutSec > MaxVisibilityTimeoutSeconds {
		return errors.New("backoff max timeout exceeds 43200 seconds")
	}

	if b.Multiplier < 1 {
		return errors.New("backoff multiplier must be at least 1")
	}

	if b.RandFactor < 0 || b.RandFactor > 1 {
		return errors.New("backoff rand factor must be between 0 and 1")
	}

	return nil
}

// calculate returns the visibility timeout in seconds for a message that
// has been received receiveCount times.
func (b *BackOff) calculate(receiveCount int) int32 {
	deliveries := float64(max(receiveCount, 1))

	bo := float64(b.InitTimeoutSec) * math.Pow(b.Multiplier, deliveries-1)
	bo = math.Min(bo, float64(b.MaxTimeoutSec))

	if b.RandFactor > 0 {
		d := b.RandFactor * bo
		lo := bo - d
		hi := bo + d
		bo = lo + rand.Float64()*(hi-lo) //nolint:gosec // Jitter does not need a secure source
	}

	return int32(math.Min(math.Floor(bo), MaxVisibilityTimeoutSeconds))
}

// receiveBackoff spaces out Receive calls after transient queue errors.
// It is only used by the polling goroutine.
type receiveBackoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newReceiveBackoff(initial, maxDelay time.Duration) *receiveBackoff {
	return &receiveBackoff{
		initial: initial,
		max:     maxDelay,
	}
}

func (b *receiveBackoff) next() time.Duration {
	if b.current == 0 {
		b.current = b.initial
	} else {
		b.current = min(b.current*2, b.max)
	}

	return b.current
}

func (b *receiveBackoff) reset() {
	b.current = 0
}
