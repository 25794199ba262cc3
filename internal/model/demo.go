// Package model holds concrete domain.Model adapters plus a registry
// that lets configuration select one by name.
package model

import (
	"math/rand/v2"
	"sync"

	"github.com/fraudpipeline/core/internal/domain"
)

// fraudRate returns the fraud probability for a given model version:
// the current generation (N) is slightly more aggressive than the one
// it superseded (N-1), so that switching versions visibly changes the
// alarm rate in a demo run.
func fraudRate(v domain.ModelVersion) float64 {
	switch v {
	case domain.ModelVersionN:
		return 0.04
	case domain.ModelVersionNMinus1:
		return 0.03
	default:
		return 0.0
	}
}

func versionString(v domain.ModelVersion) string {
	switch v {
	case domain.ModelVersionN:
		return "4"
	case domain.ModelVersionNMinus1:
		return "3"
	default:
		return "unknown"
	}
}

// Demo is a synthetic model: each classification independently rolls
// a biased coin at the active version's fraud rate. It never inspects
// the transaction's fields. Safe for concurrent use.
type Demo struct {
	mu      sync.Mutex
	rng     *rand.Rand
	version domain.ModelVersion
}

// NewDemo constructs a Demo model starting at ModelVersionN. If seed
// is non-nil the RNG is deterministic; otherwise it is seeded from OS
// entropy.
func NewDemo(seed *uint64) *Demo {
	var rng *rand.Rand
	if seed != nil {
		rng = rand.New(rand.NewPCG(*seed, *seed^0xD1B54A32D192ED03))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Demo{rng: rng, version: domain.ModelVersionN}
}

func (d *Demo) Classify(domain.Transaction) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Float64() < fraudRate(d.version), nil
}

func (d *Demo) Name() string { return "DEMO" }

func (d *Demo) ActiveVersion() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return versionString(d.version)
}

// SwitchVersion stores the new version; it takes effect starting with
// the next Classify call. Demo never fails a switch.
func (d *Demo) SwitchVersion(v domain.ModelVersion) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = v
	return nil
}
