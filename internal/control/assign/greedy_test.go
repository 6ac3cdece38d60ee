package assign

import (
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
)

func TestGreedy_ThreeAgents(t *testing.T) {
	agents := []orb.Point{{0, 0}, {10, 0}, {100, 0}}
	targets := []orb.Point{{1, 0}, {9, 0}, {101, 0}}
	got := Greedy(agents, targets)
	for i, want := range []int{0, 1, 2} {
		if got[i] != want {
			t.Fatalf("agent %d -> %d, want %d (all=%v)", i, got[i], want, got)
		}
	}
	if d := TotalDistance(got, agents, targets); d != 3 {
		t.Fatalf("total=%v want 3", d)
	}
}

func TestGreedy_IsBijection(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 1; n <= 9; n++ {
		for trial := 0; trial < 20; trial++ {
			agents := make([]orb.Point, n)
			targets := make([]orb.Point, n)
			for i := 0; i < n; i++ {
				agents[i] = orb.Point{rng.Float64() * 3000, rng.Float64() * 2000}
				targets[i] = orb.Point{rng.Float64() * 3000, rng.Float64() * 2000}
			}
			a := Greedy(agents, targets)
			if !a.Valid(n) {
				t.Fatalf("n=%d trial=%d: not a bijection: %v", n, trial, a)
			}
			if len(a.Pairs()) != n {
				t.Fatalf("n=%d: pairs=%d", n, len(a.Pairs()))
			}
		}
	}
}

func TestGreedy_TieBreaksTowardLowIndex(t *testing.T) {
	// Both agents are 5 away from both targets.
	agents := []orb.Point{{0, 5}, {0, -5}}
	targets := []orb.Point{{0, 0}, {0, 0}}
	got := Greedy(agents, targets)
	if got[0] != 0 || got[1] != 1 {
		t.Fatalf("tie break: %v", got)
	}
}

func TestGreedy_NotGloballyOptimal(t *testing.T) {
	// Greedy grabs the 1mm pair first and pays for it on the other agent.
	agents := []orb.Point{{1, 0}, {3.5, 0}}
	targets := []orb.Point{{2, 0}, {-0.2, 0}}
	got := Greedy(agents, targets)
	if got[0] != 0 || got[1] != 1 {
		t.Fatalf("greedy pairing=%v", got)
	}
	alt := Assignment{1, 0}
	if TotalDistance(got, agents, targets) <= TotalDistance(alt, agents, targets) {
		t.Fatalf("expected the greedy total to exceed the crossed pairing")
	}
}

func TestGreedy_Unbalanced(t *testing.T) {
	agents := []orb.Point{{0, 0}, {50, 0}, {100, 0}}
	targets := []orb.Point{{99, 0}}
	got := Greedy(agents, targets)
	if got.Target(2) != 0 || got.Target(0) != Unassigned || got.Target(1) != Unassigned {
		t.Fatalf("unbalanced=%v", got)
	}
	if got.Valid(3) {
		t.Fatalf("partial assignment reported valid")
	}
	if got := Greedy(nil, targets); len(got) != 0 {
		t.Fatalf("no agents: %v", got)
	}
}
