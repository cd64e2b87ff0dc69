package consumer

import "time"

// Clock supplies the current time for lease bookkeeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}
