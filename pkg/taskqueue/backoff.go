package taskqueue

import (
	"time"

	"github.com/roland-id-au/vows-social-sub000/pkg/common/faults"
)

const fallbackDelay = time.Minute

// Backoff computes the retry delay for a failed attempt: base doubled per
// recorded attempt, bounded per queue. Discovery gets the long schedule only
// for transient external-API failures; its other failure modes retry on the
// short fixed delay.
func Backoff(queue string, kind faults.Kind, attempts int) time.Duration {
	var base, max time.Duration
	switch queue {
	case QueueEnrichment:
		base, max = 5*time.Minute, 20*time.Minute
	case QueuePublishing:
		base, max = 2*time.Minute, 8*time.Minute
	case QueueDiscovery:
		if kind != faults.TransientExternal {
			return fallbackDelay
		}
		base, max = time.Hour, 4*time.Hour
	default:
		return fallbackDelay
	}

	delay := base
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}
