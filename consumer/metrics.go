package consumer

import "time"

// Metrics receives per-message events from the consumer. Implementations
// must be safe for concurrent use.
type Metrics interface {
	MessagesReceived(n int)
	MessageAcknowledged()
	MessageSkipped()
	MessageDeadLettered()
	MessageRetried()
	StaleHandle()
	ReceiveError()
	InFlight(delta int)
	ObserveProcessing(outcome string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) MessagesReceived(int)                    {}
func (noopMetrics) MessageAcknowledged()                    {}
func (noopMetrics) MessageSkipped()                         {}
func (noopMetrics) MessageDeadLettered()                    {}
func (noopMetrics) MessageRetried()                         {}
func (noopMetrics) StaleHandle()                            {}
func (noopMetrics) ReceiveError()                           {}
func (noopMetrics) InFlight(int)                            {}
func (noopMetrics) ObserveProcessing(string, time.Duration) {}
