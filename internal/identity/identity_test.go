package identity

import (
	"regexp"
	"testing"
)

var idPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestDeriveSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"u1", "u2"},
		{"alice", "bob"},
		{"0a1b6c50-8cd1-447d-a348-5bcb65c2f9c2", "e4ef1a5c-05cb-46a3-a2a9-f1b9fcfa7b7e"},
		{"same", "same"},
	}
	for _, p := range pairs {
		ab := Derive(p[0], p[1])
		ba := Derive(p[1], p[0])
		if ab != ba {
			t.Errorf("Derive(%q,%q) = %q but Derive(%q,%q) = %q", p[0], p[1], ab, p[1], p[0], ba)
		}
		if !idPattern.MatchString(ab) {
			t.Errorf("Derive(%q,%q) = %q, not a grouped 36-char identifier", p[0], p[1], ab)
		}
	}
}

func TestDeriveDeterministic(t *testing.T) {
	first := Derive("u1", "u2")
	for i := 0; i < 10; i++ {
		if got := Derive("u1", "u2"); got != first {
			t.Fatalf("Derive not deterministic: %q != %q", got, first)
		}
	}
}

// TestDeriveGolden pins the derivation output for fixed identifiers so the
// algorithm can never drift: both sides of an existing direct conversation
// depend on deriving the same value forever.
func TestDeriveGolden(t *testing.T) {
	cases := []struct {
		a, b string
		want string
	}{
		{"u1", "u2", "ce78e9b3-bec6-30fc-a692-3278cc35d649"},
		{"alice", "bob", "ec0048c7-d6b5-311c-9b26-1b71a813eff3"},
		{
			"0a1b6c50-8cd1-447d-a348-5bcb65c2f9c2",
			"e4ef1a5c-05cb-46a3-a2a9-f1b9fcfa7b7e",
			"e8caf9de-6987-39bc-85a1-036d41eb8554",
		},
	}
	for _, c := range cases {
		if got := Derive(c.a, c.b); got != c.want {
			t.Errorf("Derive(%q,%q) = %q, want %q", c.a, c.b, got, c.want)
		}
	}
}

func TestDeriveDistinctPairs(t *testing.T) {
	if Derive("u1", "u2") == Derive("u1", "u3") {
		t.Error("different pairs derived the same identifier")
	}
}
