package model

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Pose is a position in the pool plane (x, z in mm) plus a heading in radians.
type Pose struct {
	Pos     orb.Point
	Heading float64
}

type Fish struct {
	ID int
	Pose
	Vel    orb.Point // mm/s
	AngVel float64   // rad/s
}

// Speed is the magnitude of the linear velocity.
func (f Fish) Speed() float64 {
	return math.Hypot(f.Vel[0], f.Vel[1])
}

type Ball struct {
	ID     int
	Pos    orb.Point
	InHole bool
}

type Hole struct {
	ID      int
	Pos     orb.Point
	Heading float64
}

// Target is a destination pose used both as a final goal and as an intermediate waypoint.
type Target struct {
	Pos     orb.Point
	Heading float64
}

// World is the per-cycle snapshot handed over by the host. It is read-only for the cycle.
type World struct {
	Cycle           int
	RemainingCycles int
	ElapsedMs       int64
	CycleMs         int

	Fish  []Fish
	Balls []Ball
	Holes []Hole
	Flags map[string]int
}

// BallFlag is the host flag name reporting that ball i reached its hole.
func BallFlag(i int) string { return fmt.Sprintf("ball_%d_in_hole", i) }

func (w *World) BallInHole(i int) bool {
	if i < 0 || i >= len(w.Balls) {
		return false
	}
	if w.Balls[i].InHole {
		return true
	}
	return w.Flags[BallFlag(i)] != 0
}

// CycleSeconds returns the cycle duration, falling back to def (ms) when the host sent none.
func (w *World) CycleSeconds(def int) float64 {
	ms := w.CycleMs
	if ms <= 0 {
		ms = def
	}
	return float64(ms) / 1000
}
