package risk

import (
	"sync"
	"time"
)

// Thresholds maps EWMA pressure values to the minimum state an
// account should occupy.
type Thresholds struct {
	Watched    float64
	Restricted float64
	Blocked    float64
}

// DefaultThresholds mirrors the teacher's escalation defaults, scaled
// down for a signal that increments by 1.0 per fraud flag rather than
// a continuous anomaly score.
func DefaultThresholds() Thresholds {
	return Thresholds{Watched: 0.3, Restricted: 0.6, Blocked: 0.85}
}

// targetState evaluates thresholds highest-first so a single large
// jump in pressure lands on the right state in one step.
func targetState(pressure float64, th Thresholds) State {
	switch {
	case pressure >= th.Blocked:
		return StateBlocked
	case pressure >= th.Restricted:
		return StateRestricted
	case pressure >= th.Watched:
		return StateWatched
	default:
		return StateNormal
	}
}

// Tracker owns one AccountState + pressure accumulator per account
// name and applies fraud flags to them. A Tracker is safe for
// concurrent use by multiple goroutines: the pipeline records flags
// from the Consumer's goroutine and calls Sweep from a separate ticker
// goroutine.
type Tracker struct {
	mu         sync.Mutex
	alpha      float64
	thresholds Thresholds
	decayAfter time.Duration
	accounts   map[string]*trackedAccount
}

type trackedAccount struct {
	state *AccountState
	acc   *accumulator
}

// NewTracker constructs a Tracker with the given EWMA smoothing factor
// and state thresholds. decayAfter is how long an account must go
// without a new flag before its state is eligible to decay by one
// level (see Sweep).
func NewTracker(alpha float64, thresholds Thresholds, decayAfter time.Duration) *Tracker {
	return &Tracker{
		alpha:      alpha,
		thresholds: thresholds,
		decayAfter: decayAfter,
		accounts:   make(map[string]*trackedAccount),
	}
}

// RecordFlag registers one fraud flag against the named account,
// updates its EWMA pressure, and escalates its state if a threshold
// was crossed. Returns the account's state after the update.
func (t *Tracker) RecordFlag(name string) State {
	t.mu.Lock()
	ta, ok := t.accounts[name]
	if !ok {
		ta = &trackedAccount{state: newAccountState(name), acc: newAccumulator(t.alpha)}
		t.accounts[name] = ta
	}
	t.mu.Unlock()

	ta.state.mu.Lock()
	ta.state.flagCount++
	ta.state.lastFlagAt = time.Now()
	ta.state.mu.Unlock()

	pressure := ta.acc.update(1.0)
	ta.state.mu.Lock()
	ta.state.pressure = pressure
	ta.state.mu.Unlock()

	target := targetState(pressure, t.thresholds)
	ta.state.escalate(target)
	return ta.state.Current()
}

// State returns the current escalation state for name, or StateNormal
// if the account has never been flagged.
func (t *Tracker) State(name string) State {
	t.mu.Lock()
	ta, ok := t.accounts[name]
	t.mu.Unlock()
	if !ok {
		return StateNormal
	}
	return ta.state.Current()
}

// Sweep decays every tracked account whose last flag is older than
// decayAfter by one state level, and resets its pressure accumulator
// once it reaches NORMAL. Intended to be called periodically (e.g.
// from a ticker in the wiring layer); never called by the hot path.
func (t *Tracker) Sweep(now time.Time) {
	t.mu.Lock()
	accounts := make([]*trackedAccount, 0, len(t.accounts))
	for _, ta := range t.accounts {
		accounts = append(accounts, ta)
	}
	t.mu.Unlock()

	for _, ta := range accounts {
		ta.state.mu.Lock()
		idle := now.Sub(ta.state.lastFlagAt)
		ta.state.mu.Unlock()
		if idle < t.decayAfter {
			continue
		}
		newState, decayed := ta.state.decay()
		if decayed && newState == StateNormal {
			ta.acc.reset()
		}
	}
}

// Len reports the number of distinct accounts currently tracked. Test
// helper only.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.accounts)
}
