package storage

import (
	"sync"
	"sync/atomic"

	"github.com/fraudpipeline/core/internal/domain"
)

// Memory is an in-process, capacity-checked domain.Storage used by
// tests and selectable as the "memory" storage backend. A write that would exceed capacity is
// rejected in full: nothing in the offending batch is stored.
type Memory struct {
	mu       sync.Mutex
	data     []domain.PendingTransaction
	capacity int
}

// NewMemory returns an empty Memory store with the given capacity.
func NewMemory(capacity int) *Memory {
	return &Memory{capacity: capacity}
}

func (m *Memory) WriteBatch(batch []domain.PendingTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.data)+len(batch) > m.capacity {
		return &domain.StorageError{Kind: domain.StorageErrCapacityExceeded, Capacity: m.capacity}
	}
	m.data = append(m.data, batch...)
	return nil
}

// Len reports the number of records currently stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Discard is a no-op domain.Storage: it accepts every batch without
// retaining it, used by cmd/frauddetect-bench to exclude storage cost
// from a throughput measurement. It still counts the transactions it
// was asked to store, so a benchmark can report total throughput.
type Discard struct {
	count atomic.Int64
}

// NewDiscard returns a Discard store.
func NewDiscard() *Discard { return &Discard{} }

func (d *Discard) WriteBatch(batch []domain.PendingTransaction) error {
	d.count.Add(int64(len(batch)))
	return nil
}

// Count returns the lifetime number of records passed to WriteBatch.
func (d *Discard) Count() int {
	return int(d.count.Load())
}
