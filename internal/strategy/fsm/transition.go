// Package fsm sequences the control laws into maneuvers.
//
// A Task runs one Maneuver until it arrives or times out. An Agenda chains tasks for one fish.
// A Formation moves a group of fish onto assigned target poses. A Scheduler plays segments
// (formations or anything else that writes commands) one after the other.
//
// Everything here runs on the decision goroutine once per cycle. Timeouts count cycles.
package fsm

import "math"

// DefaultCycleMs is used when the host did not report a cycle duration.
const DefaultCycleMs = 100

// Transition is emitted whenever a machine changes state.
type Transition struct {
	Machine string `json:"machine"`
	From    string `json:"from"`
	To      string `json:"to"`
	Reason  string `json:"reason,omitempty"`
	Cycle   int    `json:"cycle"`
}

type Observer interface {
	OnTransition(Transition)
}

type ObserverFunc func(Transition)

func (f ObserverFunc) OnTransition(t Transition) { f(t) }

// Observers fans a transition out to each non-nil observer.
type Observers []Observer

func (os Observers) OnTransition(t Transition) {
	for _, o := range os {
		if o != nil {
			o.OnTransition(t)
		}
	}
}

func notify(o Observer, t Transition) {
	if o != nil {
		o.OnTransition(t)
	}
}

// CyclesFor converts a duration in seconds into a whole number of cycles, at least one.
func CyclesFor(seconds float64, cycleMs int) int {
	if cycleMs <= 0 {
		cycleMs = DefaultCycleMs
	}
	n := int(math.Ceil(seconds*1000/float64(cycleMs) - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}
