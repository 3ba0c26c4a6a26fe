package source

import (
	"sync"
	"time"
)

// waitCap bounds how long a single call can be delayed by pacing, even when
// a source is configured with a much larger interval. Pacing is advisory:
// concurrent calls to the same source may still overlap briefly.
const waitCap = 50 * time.Millisecond

const defaultInterval = 100 * time.Millisecond

// pacer spaces out calls to one source. Last-writer-wins on the timestamp
// is fine here; this is pacing, not admission control.
type pacer struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func newPacer(interval time.Duration) *pacer {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &pacer{interval: interval}
}

// wait sleeps until roughly interval has passed since the previous call,
// capped at waitCap, then stamps the current time.
func (p *pacer) wait() {
	p.mu.Lock()
	elapsed := time.Since(p.last)
	p.mu.Unlock()

	if elapsed < p.interval {
		delay := p.interval - elapsed
		if delay > waitCap {
			delay = waitCap
		}
		time.Sleep(delay)
	}

	p.mu.Lock()
	p.last = time.Now()
	p.mu.Unlock()
}
