package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/fraudpipeline/core/internal/domain"
	"github.com/google/uuid"
)

func tx(name string) domain.Transaction {
	return domain.Transaction{ID: uuid.New(), Amount: 10, LastName: name}
}

func TestConcurrentWriteReadRoundtrip(t *testing.T) {
	b := NewConcurrent()
	if err := b.WriteBatch([]domain.Transaction{tx("Smith"), tx("Jones")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := b.ReadBatch(10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
}

func TestConcurrentReadEmptyClosedReturnsClosed(t *testing.T) {
	b := NewConcurrent()
	b.Close()
	_, err := b.ReadBatch(10)
	if !domain.IsClosed(err) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestConcurrentWriteToClosedReturnsClosed(t *testing.T) {
	b := NewConcurrent()
	b.Close()
	err := b.WriteBatch([]domain.Transaction{tx("Smith")})
	if !domain.IsClosed(err) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestConcurrentDrainsFromFront(t *testing.T) {
	b := NewConcurrent()
	_ = b.WriteBatch([]domain.Transaction{tx("A"), tx("B"), tx("C")})
	out, err := b.ReadBatch(2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out[0].LastName != "A" || out[1].LastName != "B" {
		t.Fatalf("expected FIFO order A,B got %v", out)
	}
	if b.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", b.Len())
	}
}

func TestConcurrentCloseIsIdempotent(t *testing.T) {
	b := NewConcurrent()
	b.Close()
	b.Close()
	if err := b.WriteBatch([]domain.Transaction{tx("A")}); !domain.IsClosed(err) {
		t.Fatalf("expected closed after double close, got %v", err)
	}
}

func TestConcurrentYieldUnblocksRead(t *testing.T) {
	b := NewConcurrent()
	var wg sync.WaitGroup
	var out []domain.Transaction
	var readErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		out, readErr = b.ReadBatch(10)
	}()
	time.Sleep(5 * time.Millisecond)
	_ = b.WriteBatch([]domain.Transaction{tx("late")})
	wg.Wait()
	if readErr != nil {
		t.Fatalf("read: %v", readErr)
	}
	if len(out) != 1 || out[0].LastName != "late" {
		t.Fatalf("expected the late write to unblock the read, got %v", out)
	}
}

func TestBoundedFullRejectsWholeBatch(t *testing.T) {
	b := NewBounded(3)
	if err := b.WriteBatch([]domain.Transaction{tx("A"), tx("B")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := b.WriteBatch([]domain.Transaction{tx("C"), tx("D")})
	if err == nil {
		t.Fatal("expected full error")
	}
	be, ok := err.(*domain.BufferError)
	if !ok || be.Kind != domain.BufferErrFull || be.Capacity != 3 {
		t.Fatalf("expected Full{capacity:3}, got %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("rejected batch must not be partially applied, got len %d", b.Len())
	}
}
