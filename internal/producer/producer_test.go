package producer

import (
	"context"
	"testing"
	"time"

	"github.com/fraudpipeline/core/internal/buffer"
	"github.com/fraudpipeline/core/internal/domain"
)

func TestNewConfigRejectsZero(t *testing.T) {
	if _, err := NewConfig(0); err == nil {
		t.Fatal("expected error for n1_max=0")
	}
}

func TestBatchSizeBounds(t *testing.T) {
	cfg, err := NewConfig(5)
	if err != nil {
		t.Fatal(err)
	}
	cfg.WithSeed(42)
	p := New(*cfg, nil)
	for i := 0; i < 200; i++ {
		batch := p.GenerateBatch()
		if len(batch) < 1 || len(batch) > 5 {
			t.Fatalf("batch size %d out of [1,5]", len(batch))
		}
	}
}

func TestTxFieldsValid(t *testing.T) {
	cfg, _ := NewConfig(10)
	cfg.WithSeed(1)
	p := New(*cfg, nil)
	batch := p.GenerateBatch()
	for _, tx := range batch {
		if tx.Amount <= 0 || tx.Amount > 10000 {
			t.Fatalf("amount out of range: %f", tx.Amount)
		}
		if tx.LastName == "" {
			t.Fatal("last name must not be empty")
		}
		if tx.ID.String() == "" {
			t.Fatal("id must be set")
		}
	}
}

func TestSeededRNGDeterministic(t *testing.T) {
	cfg1, _ := NewConfig(20)
	cfg1.WithSeed(777)
	p1 := New(*cfg1, nil)

	cfg2, _ := NewConfig(20)
	cfg2.WithSeed(777)
	p2 := New(*cfg2, nil)

	b1 := p1.GenerateBatch()
	b2 := p2.GenerateBatch()
	if len(b1) != len(b2) {
		t.Fatalf("deterministic seeds produced different batch sizes: %d vs %d", len(b1), len(b2))
	}
	for i := range b1 {
		if b1[i].Amount != b2[i].Amount || b1[i].LastName != b2[i].LastName {
			t.Fatalf("deterministic seeds diverged at index %d", i)
		}
	}
}

func TestProduceAndWrite(t *testing.T) {
	cfg, _ := NewConfig(5)
	cfg.WithSeed(1)
	p := New(*cfg, nil)
	buf1 := buffer.NewConcurrent()
	if err := p.ProduceOnce(buf1); err != nil {
		t.Fatalf("produce once: %v", err)
	}
	if buf1.Len() == 0 {
		t.Fatal("expected buffer to receive the batch")
	}
}

func TestRunNIterations(t *testing.T) {
	cfg, _ := NewConfig(3)
	cfg.WithSeed(1)
	cfg.WithIterations(5)
	p := New(*cfg, nil)
	buf1 := buffer.NewConcurrent()
	if err := p.Run(context.Background(), buf1); err != nil {
		t.Fatalf("run: %v", err)
	}
	if buf1.Len() == 0 {
		t.Fatal("expected at least one batch written across 5 iterations")
	}
}

func TestRunStopsOnClosed(t *testing.T) {
	cfg, _ := NewConfig(3)
	cfg.WithSeed(1)
	p := New(*cfg, nil)
	buf1 := buffer.NewConcurrent()
	buf1.Close()
	if err := p.Run(context.Background(), buf1); err != nil {
		t.Fatalf("expected clean stop on closed buffer, got %v", err)
	}
}

type fullBuffer struct{}

func (fullBuffer) WriteBatch(batch []domain.Transaction) error {
	return domain.NewFullError(0)
}
func (fullBuffer) Close() {}

func TestRunPropagatesFull(t *testing.T) {
	cfg, _ := NewConfig(3)
	cfg.WithSeed(1)
	p := New(*cfg, nil)
	if err := p.Run(context.Background(), fullBuffer{}); err == nil {
		t.Fatal("expected Full error to propagate")
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	cfg, _ := NewConfig(3)
	cfg.WithSeed(1)
	cfg.WithPollInterval(time.Hour)
	p := New(*cfg, nil)
	buf1 := buffer.NewConcurrent()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, buf1) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop promptly on cancellation")
	}
}
