package lifecycle

import "testing"

func TestAdvanceFromStart(t *testing.T) {
	s, err := Advance(Start, true)
	if err != nil || s != Success {
		t.Errorf("Advance(Start, member) = %v, %v; want Success", s, err)
	}
	s, err = Advance(Start, false)
	if err != nil || s != Quit {
		t.Errorf("Advance(Start, non-member) = %v, %v; want Quit", s, err)
	}
}

func TestAdvanceReentrant(t *testing.T) {
	if s, err := Advance(Success, true); err != nil || s != Success {
		t.Errorf("Success re-entry = %v, %v", s, err)
	}
	if s, err := Advance(Quit, false); err != nil || s != Quit {
		t.Errorf("Quit re-entry = %v, %v", s, err)
	}
}

func TestAdvanceAcrossMembership(t *testing.T) {
	if s, err := Advance(Success, false); err != nil || s != Quit {
		t.Errorf("Success departure = %v, %v; want Quit", s, err)
	}
	if s, err := Advance(Quit, true); err != nil || s != Success {
		t.Errorf("Quit re-join = %v, %v; want Success", s, err)
	}
}

func TestAdvanceUnknownState(t *testing.T) {
	if _, err := Advance(State("BOGUS"), true); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestValid(t *testing.T) {
	for _, s := range []State{Start, Success, Quit} {
		if !Valid(s) {
			t.Errorf("Valid(%s) = false", s)
		}
	}
	if Valid(State("NOPE")) {
		t.Error("Valid(NOPE) = true")
	}
}
