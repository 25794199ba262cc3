// Package risk implements the supplemental, observational account-risk
// escalation feature: repeated fraud alarms against the same account
// name accumulate pressure and drive a monotonic state machine. This
// never vetoes a transaction or touches buffer flow control. The state
// is read back only through Tracker.State; it is not recorded in
// metrics or in persisted records.
package risk

import (
	"fmt"
	"sync"
	"time"
)

// State is the escalation level assigned to an account.
type State uint8

const (
	StateNormal State = iota
	StateWatched
	StateRestricted
	StateBlocked
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateWatched:
		return "WATCHED"
	case StateRestricted:
		return "RESTRICTED"
	case StateBlocked:
		return "BLOCKED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// IsTerminal reports whether the state can never decay further.
// BLOCKED is the only terminal state.
func (s State) IsTerminal() bool {
	return s == StateBlocked
}

// AccountState holds the mutable escalation state for one account
// name. All fields are protected by mu.
type AccountState struct {
	mu          sync.Mutex
	name        string
	current     State
	enteredAt   time.Time
	lastFlagAt  time.Time
	flagCount   int
	pressure    float64
}

// newAccountState creates an AccountState for name in StateNormal.
func newAccountState(name string) *AccountState {
	now := time.Now()
	return &AccountState{name: name, current: StateNormal, enteredAt: now, lastFlagAt: now}
}

// Current returns the current escalation state.
func (as *AccountState) Current() State {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.current
}

// Pressure returns the last stored EWMA pressure value.
func (as *AccountState) Pressure() float64 {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.pressure
}

// FlagCount returns the number of fraud flags recorded against this
// account since it was created.
func (as *AccountState) FlagCount() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.flagCount
}

// escalate attempts to transition to a higher state. Escalation never
// decreases the state; a target at or below current is a no-op.
func (as *AccountState) escalate(target State) (State, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if target <= as.current {
		return as.current, false
	}
	as.current = target
	as.enteredAt = time.Now()
	return as.current, true
}

// decay reduces the state by one level. BLOCKED and NORMAL never
// decay.
func (as *AccountState) decay() (State, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.current == StateNormal || as.current == StateBlocked {
		return as.current, false
	}
	as.current--
	as.enteredAt = time.Now()
	return as.current, true
}
