package model

import "github.com/fraudpipeline/core/internal/domain"

// Bench is a zero-overhead model used by cmd/frauddetect-bench to
// measure pipeline throughput excluding model cost: it always reports
// not-fraud, performs no RNG draw, and never fails a switch.
type Bench struct{}

// NewBench constructs a Bench model.
func NewBench() *Bench { return &Bench{} }

func (Bench) Classify(domain.Transaction) (bool, error) { return false, nil }
func (Bench) Name() string                              { return "BENCH" }
func (Bench) ActiveVersion() string                      { return "1" }
func (Bench) SwitchVersion(domain.ModelVersion) error    { return nil }
