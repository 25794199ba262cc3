package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/fraudpipeline/core/internal/buffer"
	"github.com/fraudpipeline/core/internal/domain"
	"github.com/google/uuid"
)

type mockModelizer struct {
	fraudEvery int // every Nth transaction (by position) is fraud
	switched   domain.ModelVersion
	failInfer  bool
}

func (m *mockModelizer) Infer(batch []domain.Transaction) ([]domain.InferredTransaction, error) {
	if m.failInfer {
		return nil, &domain.ModelizerError{Kind: domain.ModelizerErrInferenceFailed, Reason: "boom"}
	}
	out := make([]domain.InferredTransaction, len(batch))
	for i, tx := range batch {
		fraud := m.fraudEvery > 0 && (i+1)%m.fraudEvery == 0
		out[i] = domain.InferredTransaction{Transaction: tx, PredictedFraud: fraud, ModelName: "MOCK", ModelVersion: "1"}
	}
	return out, nil
}

func (m *mockModelizer) SwitchVersion(v domain.ModelVersion) error {
	m.switched = v
	return nil
}

type countingAlarm struct {
	triggered int
	failAll   bool
}

func (a *countingAlarm) Trigger(tx domain.InferredTransaction) error {
	a.triggered++
	if a.failAll {
		return &domain.AlarmError{Reason: "down"}
	}
	return nil
}

func mkTx() domain.Transaction {
	return domain.Transaction{ID: uuid.New(), Amount: 5, LastName: "Smith"}
}

func TestConsumeOnceHappyPath(t *testing.T) {
	buf1 := buffer.NewConcurrent()
	_ = buf1.WriteBatch([]domain.Transaction{mkTx(), mkTx(), mkTx()})
	buf2 := buffer.NewConcurrent2()
	cfg, _ := NewConfig(10)
	cfg.WithSeed(1)
	c := New(*cfg, nil, nil)

	mz := &mockModelizer{fraudEvery: 2}
	al := &countingAlarm{}
	alarmErrs, err := c.ConsumeOnce(buf1, mz, al, buf2)
	if err != nil {
		t.Fatalf("consume once: %v", err)
	}
	if len(alarmErrs) != 0 {
		t.Fatalf("expected no alarm failures, got %v", alarmErrs)
	}
	if buf2.Len() == 0 {
		t.Fatal("expected inferred batch written to buf2")
	}
}

func TestConsumeOnceCollectsAlarmFailuresWithoutAborting(t *testing.T) {
	buf1 := buffer.NewConcurrent()
	_ = buf1.WriteBatch([]domain.Transaction{mkTx(), mkTx()})
	buf2 := buffer.NewConcurrent2()
	cfg, _ := NewConfig(10)
	cfg.WithSeed(1)
	c := New(*cfg, nil, nil)

	mz := &mockModelizer{fraudEvery: 1} // every tx is fraud
	al := &countingAlarm{failAll: true}
	alarmErrs, err := c.ConsumeOnce(buf1, mz, al, buf2)
	if err != nil {
		t.Fatalf("expected batch to still complete: %v", err)
	}
	if len(alarmErrs) == 0 {
		t.Fatal("expected collected alarm failures")
	}
	if buf2.Len() == 0 {
		t.Fatal("expected write to buf2 despite alarm failures")
	}
}

func TestConsumeOnceReadClosedPropagates(t *testing.T) {
	buf1 := buffer.NewConcurrent()
	buf1.Close()
	buf2 := buffer.NewConcurrent2()
	cfg, _ := NewConfig(10)
	cfg.WithSeed(1)
	c := New(*cfg, nil, nil)
	_, err := c.ConsumeOnce(buf1, &mockModelizer{}, &countingAlarm{}, buf2)
	ce, ok := err.(*Error)
	if !ok || ce.Op != "read" || !domain.IsClosed(ce.Err) {
		t.Fatalf("expected read/closed error, got %v", err)
	}
}

func TestConsumeOnceInferenceErrorPropagates(t *testing.T) {
	buf1 := buffer.NewConcurrent()
	_ = buf1.WriteBatch([]domain.Transaction{mkTx()})
	buf2 := buffer.NewConcurrent2()
	cfg, _ := NewConfig(10)
	cfg.WithSeed(1)
	c := New(*cfg, nil, nil)
	_, err := c.ConsumeOnce(buf1, &mockModelizer{failInfer: true}, &countingAlarm{}, buf2)
	ce, ok := err.(*Error)
	if !ok || ce.Op != "inference" {
		t.Fatalf("expected inference error, got %v", err)
	}
}

func TestConsumeOnceWriteClosedPropagates(t *testing.T) {
	buf1 := buffer.NewConcurrent()
	_ = buf1.WriteBatch([]domain.Transaction{mkTx()})
	buf2 := buffer.NewConcurrent2()
	buf2.Close()
	cfg, _ := NewConfig(10)
	cfg.WithSeed(1)
	c := New(*cfg, nil, nil)
	_, err := c.ConsumeOnce(buf1, &mockModelizer{}, &countingAlarm{}, buf2)
	ce, ok := err.(*Error)
	if !ok || ce.Op != "write" || !domain.IsClosed(ce.Err) {
		t.Fatalf("expected write/closed error, got %v", err)
	}
}

func TestSwitchModelVersionDelegates(t *testing.T) {
	cfg, _ := NewConfig(10)
	c := New(*cfg, nil, nil)
	mz := &mockModelizer{}
	if err := c.SwitchModelVersion(mz, domain.ModelVersionNMinus1); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if mz.switched != domain.ModelVersionNMinus1 {
		t.Fatalf("expected delegation to reach modelizer, got %v", mz.switched)
	}
}

func TestRunStopsOnBuffer1Closed(t *testing.T) {
	buf1 := buffer.NewConcurrent()
	buf1.Close()
	buf2 := buffer.NewConcurrent2()
	cfg, _ := NewConfig(10)
	cfg.WithSeed(1)
	c := New(*cfg, nil, nil)
	err := c.Run(context.Background(), buf1, &mockModelizer{}, &countingAlarm{}, buf2)
	if err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	buf1 := buffer.NewConcurrent()
	buf2 := buffer.NewConcurrent2()
	cfg, _ := NewConfig(10)
	cfg.WithSeed(1)
	cfg.WithSpeed(time.Hour)
	c := New(*cfg, nil, nil)
	_ = buf1.WriteBatch([]domain.Transaction{mkTx()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, buf1, &mockModelizer{}, &countingAlarm{}, buf2) }()
	time.Sleep(5 * time.Millisecond)
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
