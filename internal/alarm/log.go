// Package alarm holds concrete domain.Alarm adapters.
package alarm

import (
	"go.uber.org/zap"

	"github.com/fraudpipeline/core/internal/domain"
)

// Log is the simplest alarm sink: it logs a warning for every
// triggered alert and always succeeds.
type Log struct {
	log *zap.Logger
}

// NewLog constructs a Log alarm. log may be nil.
func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log}
}

func (a *Log) Trigger(tx domain.InferredTransaction) error {
	a.log.Warn("fraud_alert",
		zap.String("transaction_id", tx.Transaction.ID.String()),
		zap.String("model", tx.ModelName),
		zap.String("model_version", tx.ModelVersion),
		zap.Float64("amount", tx.Transaction.Amount),
	)
	return nil
}
