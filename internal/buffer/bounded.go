package buffer

import (
	"runtime"
	"sync"

	"github.com/fraudpipeline/core/internal/domain"
)

// Bounded is a capacity-checked Transaction FIFO. Unlike Concurrent,
// a WriteBatch that would push the queue past its capacity is rejected
// in full: nothing in the offending batch is inserted. This gives a
// caller an atomic all-or-nothing guarantee instead of a partial write
// it would have to reconcile by hand.
type Bounded struct {
	mu       sync.Mutex
	data     []domain.Transaction
	closed   bool
	capacity int
}

// NewBounded returns an open, empty Bounded buffer with the given
// capacity. Capacity must be >= 1.
func NewBounded(capacity int) *Bounded {
	if capacity < 1 {
		panic("buffer.NewBounded: capacity must be >= 1")
	}
	return &Bounded{capacity: capacity}
}

// WriteBatch appends batch to the queue, or returns
// domain.NewFullError(capacity) if doing so would exceed capacity.
// Returns domain.ErrClosed if the buffer has already been closed.
func (b *Bounded) WriteBatch(batch []domain.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return domain.ErrClosed
	}
	if len(b.data)+len(batch) > b.capacity {
		return domain.NewFullError(b.capacity)
	}
	b.data = append(b.data, batch...)
	return nil
}

func (b *Bounded) ReadBatch(max int) ([]domain.Transaction, error) {
	for {
		b.mu.Lock()
		if len(b.data) > 0 {
			n := max
			if n > len(b.data) {
				n = len(b.data)
			}
			out := make([]domain.Transaction, n)
			copy(out, b.data[:n])
			b.data = b.data[n:]
			b.mu.Unlock()
			return out, nil
		}
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return nil, domain.ErrClosed
		}
		runtime.Gosched()
	}
}

func (b *Bounded) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *Bounded) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}
