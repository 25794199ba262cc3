package risk

import "sync"

// accumulator implements an EWMA pressure accumulator:
//
//	P_{t+1} = alpha*P_t + (1-alpha)*signal_t
//
// alpha close to 1.0 smooths out isolated flags; alpha close to 0.0
// reacts to a single flag almost immediately.
type accumulator struct {
	mu    sync.Mutex
	alpha float64
	value float64
}

// newAccumulator creates an accumulator with the given smoothing
// factor. alpha must be in [0.0, 1.0]; panics otherwise.
func newAccumulator(alpha float64) *accumulator {
	if alpha < 0.0 || alpha > 1.0 {
		panic("risk: alpha must be in [0.0, 1.0]")
	}
	return &accumulator{alpha: alpha}
}

func (a *accumulator) update(signal float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.value = a.alpha*a.value + (1.0-a.alpha)*signal
	return a.value
}

func (a *accumulator) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.value = 0.0
}
