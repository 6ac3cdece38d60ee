// Package assign matches fish to target points.
//
// Greedy picks the globally closest free pair, removes both sides and repeats. It is not an
// optimal matching: tuned thresholds downstream expect its exact pairings, so it stays greedy.
package assign

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Unassigned marks an agent with no target (more agents than targets).
const Unassigned = -1

// Assignment maps agent index to target index.
type Assignment []int

// Pair is one matched (agent, target).
type Pair struct {
	Agent  int
	Target int
}

// Greedy runs min(len(agents), len(targets)) rounds, each scanning every free pair in
// row-major order. Ties go to the lower agent index, then the lower target index.
func Greedy(agents, targets []orb.Point) Assignment {
	out := make(Assignment, len(agents))
	for i := range out {
		out[i] = Unassigned
	}
	claimed := make([]bool, len(targets))

	rounds := len(agents)
	if len(targets) < rounds {
		rounds = len(targets)
	}
	for r := 0; r < rounds; r++ {
		bestA, bestT := -1, -1
		best := math.Inf(1)
		for a, ap := range agents {
			if out[a] != Unassigned {
				continue
			}
			for t, tp := range targets {
				if claimed[t] {
					continue
				}
				if d := planar.Distance(ap, tp); d < best {
					best, bestA, bestT = d, a, t
				}
			}
		}
		if bestA < 0 {
			break
		}
		out[bestA] = bestT
		claimed[bestT] = true
	}
	return out
}

// Target returns the target index for agent i, or Unassigned.
func (a Assignment) Target(i int) int {
	if i < 0 || i >= len(a) {
		return Unassigned
	}
	return a[i]
}

// Pairs lists matched pairs in agent order.
func (a Assignment) Pairs() []Pair {
	var out []Pair
	for agent, t := range a {
		if t != Unassigned {
			out = append(out, Pair{Agent: agent, Target: t})
		}
	}
	return out
}

// Valid reports whether a is a bijection onto n targets: every agent matched, every target used once.
func (a Assignment) Valid(n int) bool {
	if len(a) != n {
		return false
	}
	seen := make([]bool, n)
	for _, t := range a {
		if t < 0 || t >= n || seen[t] {
			return false
		}
		seen[t] = true
	}
	return true
}

func TotalDistance(a Assignment, agents, targets []orb.Point) float64 {
	sum := 0.0
	for _, p := range a.Pairs() {
		sum += planar.Distance(agents[p.Agent], targets[p.Target])
	}
	return sum
}
