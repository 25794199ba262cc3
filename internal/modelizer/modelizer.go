// Package modelizer wraps a domain.Model behind the batch-oriented
// domain.Modelizer port.
package modelizer

import (
	"fmt"

	"github.com/fraudpipeline/core/internal/domain"
)

// Modelizer wraps a single domain.Model. It holds no version state of
// its own: SwitchVersion delegates verbatim to the wrapped model.
type Modelizer struct {
	model domain.Model
}

// New wraps model behind the domain.Modelizer port.
func New(model domain.Model) *Modelizer {
	return &Modelizer{model: model}
}

// Infer classifies every transaction in batch with a single model.
// The model's name and active version are read exactly once, before
// the loop, so that a SwitchVersion call racing with this Infer call
// cannot change the labeling applied to any record within the same
// batch.
func (m *Modelizer) Infer(batch []domain.Transaction) ([]domain.InferredTransaction, error) {
	name := m.model.Name()
	version := m.model.ActiveVersion()

	out := make([]domain.InferredTransaction, len(batch))
	for i, tx := range batch {
		fraud, err := m.model.Classify(tx)
		if err != nil {
			return nil, &domain.ModelizerError{
				Kind:   domain.ModelizerErrInferenceFailed,
				Reason: fmt.Sprintf("classify tx %s: %v", tx.ID, err),
			}
		}
		out[i] = domain.InferredTransaction{
			Transaction:    tx,
			PredictedFraud: fraud,
			ModelName:      name,
			ModelVersion:   version,
		}
	}
	return out, nil
}

// SwitchVersion delegates to the wrapped model.
func (m *Modelizer) SwitchVersion(version domain.ModelVersion) error {
	if err := m.model.SwitchVersion(version); err != nil {
		return &domain.ModelizerError{Kind: domain.ModelizerErrSwitchFailed, Reason: err.Error()}
	}
	return nil
}
