package main

import (
	"context"
	"time"

	"github.com/slackmgr/widget-consumer/sqs"
	"github.com/slackmgr/widget-consumer/types"
)

const queueStatsInterval = 10 * time.Second

type statsSource interface {
	Stats(ctx context.Context) (*sqs.QueueStats, error)
}

type depthRecorder interface {
	QueueDepth(available, inFlight, delayed int)
}

// monitorQueueStats samples the approximate queue depth every interval
// until ctx is cancelled.
func monitorQueueStats(ctx context.Context, source statsSource, recorder depthRecorder, logger types.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := source.Stats(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}

				logger.Warnf("Failed to get queue stats: %v", err)
				continue
			}

			recorder.QueueDepth(stats.Available, stats.InFlight, stats.Delayed)

			logger.WithFields(map[string]any{
				"available": stats.Available,
				"in_flight": stats.InFlight,
				"delayed":   stats.Delayed,
			}).Debug("Queue stats")
		}
	}
}
