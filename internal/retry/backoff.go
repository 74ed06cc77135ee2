package retry

import "time"

// DefaultBackoff is the delay table used when a job kind configures none
var DefaultBackoff = Backoff{5 * time.Minute, 30 * time.Minute, 120 * time.Minute}

// Backoff is an ordered list of delays between successive retries
type Backoff []time.Duration

// Delay returns the wait after the retryCount-th failure (1-based).
// Counts past the end of the table reuse the last entry.
func (b Backoff) Delay(retryCount int) time.Duration {
	if len(b) == 0 {
		return 0
	}
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(b) {
		idx = len(b) - 1
	}
	return b[idx]
}
