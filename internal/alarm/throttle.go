package alarm

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fraudpipeline/core/internal/domain"
)

// bucket is a thread-safe token bucket: each triggered alert costs one
// token, refilled to full capacity once per refillPeriod. It gates
// Throttled so a burst of fraud alerts cannot flood a downstream
// paging system.
type bucket struct {
	mu           sync.Mutex
	capacity     int
	tokens       int
	refillPeriod time.Duration

	consumedTotal atomic.Uint64
	refillCount   atomic.Uint64

	stop chan struct{}
}

func newBucket(capacity int, refillPeriod time.Duration) *bucket {
	if capacity <= 0 {
		panic("alarm.Throttled: capacity must be > 0")
	}
	if refillPeriod <= 0 {
		panic("alarm.Throttled: refillPeriod must be > 0")
	}
	b := &bucket{capacity: capacity, tokens: capacity, refillPeriod: refillPeriod, stop: make(chan struct{})}
	go b.refillLoop()
	return b
}

func (b *bucket) refillLoop() {
	ticker := time.NewTicker(b.refillPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.mu.Lock()
			b.tokens = b.capacity
			b.mu.Unlock()
			b.refillCount.Add(1)
		case <-b.stop:
			return
		}
	}
}

func (b *bucket) consume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tokens >= 1 {
		b.tokens--
		b.consumedTotal.Add(1)
		return true
	}
	return false
}

func (b *bucket) remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

func (b *bucket) close() {
	close(b.stop)
}

// Throttled wraps any domain.Alarm with a per-period delivery cap.
// Alerts beyond the cap return a DeliveryFailed error with reason
// "throttled" instead of calling the wrapped sink — best-effort per
// the pipeline's alarm contract, never terminal.
type Throttled struct {
	inner domain.Alarm
	b     *bucket
}

// NewThrottled wraps inner with a token bucket of the given capacity,
// refilled to full every refillPeriod.
func NewThrottled(inner domain.Alarm, capacity int, refillPeriod time.Duration) *Throttled {
	return &Throttled{inner: inner, b: newBucket(capacity, refillPeriod)}
}

func (t *Throttled) Trigger(tx domain.InferredTransaction) error {
	if !t.b.consume() {
		return &domain.AlarmError{Reason: "throttled"}
	}
	return t.inner.Trigger(tx)
}

// Remaining reports the tokens currently available.
func (t *Throttled) Remaining() int {
	return t.b.remaining()
}

// Close stops the internal refill goroutine.
func (t *Throttled) Close() {
	t.b.close()
}
