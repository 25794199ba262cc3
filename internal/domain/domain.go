// Package domain holds the pipeline's shared types and ports: the
// data that flows through the stages and the interfaces each stage is
// written against. No package under internal/ other than the concrete
// adapters may depend on anything but this package and the standard
// library for its contract.
package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Transaction is a single synthetic payment event produced upstream.
type Transaction struct {
	ID       uuid.UUID
	Amount   float64
	LastName string
}

// ModelVersion identifies which generation of a Model is currently
// active. Only two generations are ever live at once: the current one
// and the one it superseded.
type ModelVersion int

const (
	ModelVersionN ModelVersion = iota
	ModelVersionNMinus1
)

func (v ModelVersion) String() string {
	switch v {
	case ModelVersionN:
		return "N"
	case ModelVersionNMinus1:
		return "N-1"
	default:
		return "unknown"
	}
}

// InferredTransaction pairs a Transaction with the verdict a Model
// produced for it, plus the name and version of the model that
// produced that verdict.
type InferredTransaction struct {
	Transaction     Transaction
	PredictedFraud  bool
	ModelName       string
	ModelVersion    string
}

// ID is a convenience accessor mirroring the original's
// InferredTransaction::id() helper.
func (it InferredTransaction) ID() uuid.UUID {
	return it.Transaction.ID
}

// PendingTransaction is the durable record written by the Logger:
// an inferred transaction awaiting human review.
type PendingTransaction struct {
	InferredTransaction InferredTransaction
	IsReviewed          bool
	ActualFraud         *bool
}

// BufferError is the closed error taxonomy for both buffer stages.
type BufferError struct {
	Kind     BufferErrorKind
	Capacity int
}

type BufferErrorKind int

const (
	BufferErrClosed BufferErrorKind = iota
	BufferErrFull
)

func (e *BufferError) Error() string {
	switch e.Kind {
	case BufferErrClosed:
		return "buffer closed"
	case BufferErrFull:
		return fmt.Sprintf("buffer full (capacity %d)", e.Capacity)
	default:
		return "buffer error"
	}
}

// ErrClosed and NewFullError are the two constructors callers use; a
// *BufferError compares by Kind, never by identity.
var ErrClosed = &BufferError{Kind: BufferErrClosed}

func NewFullError(capacity int) *BufferError {
	return &BufferError{Kind: BufferErrFull, Capacity: capacity}
}

// IsClosed reports whether err is (or wraps) a BufferError of kind
// Closed.
func IsClosed(err error) bool {
	var be *BufferError
	if !errors.As(err, &be) {
		return false
	}
	return be.Kind == BufferErrClosed
}

// ModelizerError is the closed error taxonomy for Model/Modelizer
// failures.
type ModelizerError struct {
	Kind   ModelizerErrorKind
	Reason string
}

type ModelizerErrorKind int

const (
	ModelizerErrInferenceFailed ModelizerErrorKind = iota
	ModelizerErrSwitchFailed
)

func (e *ModelizerError) Error() string {
	switch e.Kind {
	case ModelizerErrInferenceFailed:
		return fmt.Sprintf("inference failed: %s", e.Reason)
	case ModelizerErrSwitchFailed:
		return fmt.Sprintf("switch failed: %s", e.Reason)
	default:
		return "modelizer error"
	}
}

// AlarmError is the closed error taxonomy for Alarm delivery failures.
// Delivery failures are always best-effort: a failed alarm never
// aborts the batch it was raised for.
type AlarmError struct {
	Reason string
}

func (e *AlarmError) Error() string {
	return fmt.Sprintf("alarm delivery failed: %s", e.Reason)
}

// StorageError is the closed error taxonomy for Storage failures.
type StorageError struct {
	Kind     StorageErrorKind
	Capacity int
	Reason   string
}

type StorageErrorKind int

const (
	StorageErrCapacityExceeded StorageErrorKind = iota
	StorageErrUnavailable
)

func (e *StorageError) Error() string {
	switch e.Kind {
	case StorageErrCapacityExceeded:
		return fmt.Sprintf("storage capacity exceeded (capacity %d)", e.Capacity)
	case StorageErrUnavailable:
		return fmt.Sprintf("storage unavailable: %s", e.Reason)
	default:
		return "storage error"
	}
}

// Buffer1 is the write/close side of the first stage boundary,
// Producer -> Consumer.
type Buffer1 interface {
	WriteBatch(batch []Transaction) error
	Close()
}

// Buffer1Read is the read side of the first stage boundary, consumed
// only by Consumer.
type Buffer1Read interface {
	ReadBatch(max int) ([]Transaction, error)
}

// Buffer2 is the write/close side of the second stage boundary,
// Consumer -> Logger.
type Buffer2 interface {
	WriteBatch(batch []InferredTransaction) error
	Close()
}

// Buffer2Read is the read side of the second stage boundary, consumed
// only by Logger.
type Buffer2Read interface {
	ReadBatch(max int) ([]InferredTransaction, error)
}

// Model classifies individual transactions and exposes the identity
// of whichever model generation is currently active. Implementations
// must apply a version switch requested mid-batch only to calls made
// after the switch returns, never retroactively to calls already in
// flight.
type Model interface {
	Classify(tx Transaction) (bool, error)
	Name() string
	ActiveVersion() string
	SwitchVersion(version ModelVersion) error
}

// Modelizer wraps a Model behind a batch-oriented inference call. The
// model's name and active version are read exactly once per Infer
// call, at the start, so that a concurrent SwitchVersion cannot change
// the labeling of a single batch partway through.
type Modelizer interface {
	Infer(batch []Transaction) ([]InferredTransaction, error)
	SwitchVersion(version ModelVersion) error
}

// Alarm delivers a best-effort fraud notification for a single
// inferred transaction.
type Alarm interface {
	Trigger(tx InferredTransaction) error
}

// Storage persists a batch of pending transactions for later review.
type Storage interface {
	WriteBatch(batch []PendingTransaction) error
}
