// Package lifecycle models membership confidence for a conversation:
// Start (locally known, unconfirmed), Success (confirmed member) and
// Quit (confirmed non-member). The state is persisted on the
// conversation row and only ever advanced by a successful snapshot
// refresh.
package lifecycle

import (
	"fmt"
	"slices"
)

// State is a conversation lifecycle state.
type State string

const (
	Start   State = "START"
	Success State = "SUCCESS"
	Quit    State = "QUIT"
)

// validTransitions defines allowed state transitions. Success and Quit
// are re-entrant: every successful refresh re-applies remote fields even
// without a state change. The remote roster is authoritative, so a
// departed account that is re-added moves Quit back to Success.
var validTransitions = map[State][]State{
	Start:   {Success, Quit},
	Success: {Success, Quit},
	Quit:    {Quit, Success},
}

// Valid reports whether s is a known lifecycle state.
func Valid(s State) bool {
	_, ok := validTransitions[s]
	return ok
}

// Advance returns the state a conversation moves to after a successful
// snapshot refresh, given whether the local account appears in the
// remote roster. It rejects transitions out of unknown states so a
// corrupted row surfaces instead of being silently overwritten.
func Advance(current State, member bool) (State, error) {
	target := Quit
	if member {
		target = Success
	}
	allowed, ok := validTransitions[current]
	if !ok {
		return current, fmt.Errorf("unknown lifecycle state %q", current)
	}
	if !slices.Contains(allowed, target) {
		return current, fmt.Errorf("invalid transition from %s to %s", current, target)
	}
	return target, nil
}
