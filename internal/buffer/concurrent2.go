package buffer

import (
	"runtime"
	"sync"

	"github.com/fraudpipeline/core/internal/domain"
)

// Concurrent2 is the Buffer2-shaped counterpart of Concurrent: an
// unbounded, closeable FIFO of InferredTransaction values. It is a
// distinct type rather than a generic instantiation of Concurrent
// because the two stage boundaries carry different element types and
// Go interfaces are structurally, not nominally, satisfied either way.
type Concurrent2 struct {
	mu     sync.Mutex
	data   []domain.InferredTransaction
	closed bool
}

// NewConcurrent2 returns an open, empty Concurrent2 buffer.
func NewConcurrent2() *Concurrent2 {
	return &Concurrent2{}
}

func (b *Concurrent2) WriteBatch(batch []domain.InferredTransaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return domain.ErrClosed
	}
	b.data = append(b.data, batch...)
	return nil
}

func (b *Concurrent2) ReadBatch(max int) ([]domain.InferredTransaction, error) {
	for {
		b.mu.Lock()
		if len(b.data) > 0 {
			n := max
			if n > len(b.data) {
				n = len(b.data)
			}
			out := make([]domain.InferredTransaction, n)
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

func (b *Concurrent2) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *Concurrent2) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}
