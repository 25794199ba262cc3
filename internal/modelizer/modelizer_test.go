package modelizer

import (
	"sync"
	"testing"

	"github.com/fraudpipeline/core/internal/domain"
	"github.com/google/uuid"
)

type mockModel struct {
	mu      sync.Mutex
	version domain.ModelVersion
	calls   int
}

func (m *mockModel) Classify(tx domain.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return tx.Amount > 500, nil
}

func (m *mockModel) Name() string { return "MOCK" }

func (m *mockModel) ActiveVersion() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.version == domain.ModelVersionN {
		return "N"
	}
	return "N-1"
}

func (m *mockModel) SwitchVersion(v domain.ModelVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = v
	return nil
}

func TestEmptyBatchReturnsEmpty(t *testing.T) {
	mz := New(&mockModel{})
	out, err := mz.Infer(nil)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %d", len(out))
	}
}

func TestBatchInferenceSameCountInOrder(t *testing.T) {
	mz := New(&mockModel{})
	batch := []domain.Transaction{
		{ID: uuid.New(), Amount: 100, LastName: "A"},
		{ID: uuid.New(), Amount: 900, LastName: "B"},
		{ID: uuid.New(), Amount: 10, LastName: "C"},
	}
	out, err := mz.Infer(batch)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if len(out) != len(batch) {
		t.Fatalf("expected %d results, got %d", len(batch), len(out))
	}
	for i := range batch {
		if out[i].Transaction.ID != batch[i].ID {
			t.Fatalf("order mismatch at %d", i)
		}
	}
	if !out[1].PredictedFraud {
		t.Fatal("expected the 900-amount transaction to be flagged fraud")
	}
}

func TestVersionSnapshottedOncePerCall(t *testing.T) {
	m := &mockModel{}
	mz := New(m)
	batch := make([]domain.Transaction, 5)
	for i := range batch {
		batch[i] = domain.Transaction{ID: uuid.New(), Amount: 1, LastName: "X"}
	}

	// Switch versions mid "batch" conceptually by switching right
	// before Infer is called once: all records in that single call
	// must carry the version seen at call start.
	_ = mz.SwitchVersion(domain.ModelVersionNMinus1)
	out, err := mz.Infer(batch)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	for _, it := range out {
		if it.ModelVersion != "N-1" {
			t.Fatalf("expected all records in the batch to carry N-1, got %q", it.ModelVersion)
		}
	}
}

func TestSwitchVersionDelegates(t *testing.T) {
	m := &mockModel{}
	mz := New(m)
	if err := mz.SwitchVersion(domain.ModelVersionNMinus1); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if m.version != domain.ModelVersionNMinus1 {
		t.Fatal("expected delegation to reach the wrapped model")
	}
}

func TestInferenceFailurePropagates(t *testing.T) {
	mz := New(&failingModel{})
	_, err := mz.Infer([]domain.Transaction{{ID: uuid.New()}})
	me, ok := err.(*domain.ModelizerError)
	if !ok || me.Kind != domain.ModelizerErrInferenceFailed {
		t.Fatalf("expected InferenceFailed, got %v", err)
	}
}

type failingModel struct{}

func (failingModel) Classify(domain.Transaction) (bool, error) { return false, errBoom }
func (failingModel) Name() string                              { return "FAIL" }
func (failingModel) ActiveVersion() string                     { return "1" }
func (failingModel) SwitchVersion(domain.ModelVersion) error   { return nil }

var errBoom = &domain.ModelizerError{Kind: domain.ModelizerErrInferenceFailed, Reason: "boom"}
