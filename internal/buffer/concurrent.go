// Package buffer provides the two FIFO queue adapters that sit at the
// stage boundaries of the pipeline: unbounded Concurrent (Buffer1) and
// Concurrent2 (Buffer2) buffers, plus a capacity-checked Bounded
// variant for callers that need a hard backpressure limit.
//
// All of them hold their slice and closed flag behind a mutex that is always
// released before a reader yields the processor while waiting for more
// data. That ordering is load-bearing: a reader that suspended while
// still holding the lock could never be unblocked by a writer, since
// the writer would be unable to acquire the lock to append anything.
package buffer

import (
	"runtime"
	"sync"

	"github.com/fraudpipeline/core/internal/domain"
)

// Concurrent is an unbounded, closeable FIFO of Transaction values. It
// implements domain.Buffer1 and domain.Buffer1Read; the separate
// Concurrent2 type over InferredTransaction implements
// domain.Buffer2/domain.Buffer2Read.
type Concurrent struct {
	mu     sync.Mutex
	data   []domain.Transaction
	closed bool
}

// NewConcurrent returns an open, empty Concurrent buffer.
func NewConcurrent() *Concurrent {
	return &Concurrent{}
}

// WriteBatch appends batch to the queue. Returns domain.ErrClosed if
// the buffer has already been closed; the batch is not partially
// applied in that case.
func (b *Concurrent) WriteBatch(batch []domain.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return domain.ErrClosed
	}
	b.data = append(b.data, batch...)
	return nil
}

// ReadBatch returns up to max items from the front of the queue. If
// the queue is non-empty it returns immediately, even if fewer than
// max items are available. If the queue is empty and open, it yields
// the processor and retries; it never returns an empty, nil-error
// result. If the queue is empty and closed, it returns
// domain.ErrClosed.
func (b *Concurrent) ReadBatch(max int) ([]domain.Transaction, error) {
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

// Close marks the buffer closed. Idempotent: closing an already
// closed buffer is a no-op.
func (b *Concurrent) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// Len reports the number of items currently queued. Used by tests and
// by the admin status / stats surface in cmd/frauddetect.
func (b *Concurrent) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}
