package relay

import (
	"errors"
	"fmt"
	"slices"
)

// State is the position of one authentication attempt.
type State int

const (
	Idle State = iota
	CodeReceived
	Exchanging
	Authenticated
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CodeReceived:
		return "code_received"
	case Exchanging:
		return "exchanging"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Authenticated || s == Failed
}

// ErrIllegalTransition is returned for a transition the machine does not allow.
var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[State][]State{
	Idle:         {CodeReceived, Failed},
	CodeReceived: {Exchanging, Failed},
	Exchanging:   {Authenticated, Failed},
}

// Attempt tracks a single code-for-session exchange. It is request scoped
// and not safe for concurrent use.
type Attempt struct {
	state State
}

// NewAttempt returns an attempt in the Idle state.
func NewAttempt() *Attempt {
	return &Attempt{state: Idle}
}

// State returns the current state.
func (a *Attempt) State() State {
	return a.state
}

// Transition moves the attempt to next.
func (a *Attempt) Transition(next State) error {
	if !slices.Contains(transitions[a.state], next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.state, next)
	}
	a.state = next
	return nil
}

// Fail moves any non-terminal attempt to Failed.
func (a *Attempt) Fail() {
	if !a.state.Terminal() {
		a.state = Failed
	}
}
