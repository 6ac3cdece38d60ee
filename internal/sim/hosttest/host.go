// Package hosttest is a kinematic stand-in for the simulation host, used by tests.
//
// It integrates the calibrated speed and turn rate of each command for one cycle and applies a
// contact push to balls. It is not a physics model of the fish.
package hosttest

import (
	"math"

	"github.com/paulmach/orb"

	"aquapolo.ai/internal/control/geom"
	"aquapolo.ai/internal/control/quantize"
	"aquapolo.ai/internal/sim/model"
)

type Host struct {
	Table   *quantize.Table
	CycleMs int

	HeadOffsetMm float64
	BallRadiusMm float64
	HoleRadiusMm float64

	// Frozen fish ignore commands, standing in for a fish pinned by an obstacle.
	Frozen map[int]bool

	world model.World
}

type Option func(*Host)

func WithFish(fish ...model.Fish) Option {
	return func(h *Host) {
		for _, f := range fish {
			f.ID = len(h.world.Fish)
			f.Heading = geom.Normalize(f.Heading)
			h.world.Fish = append(h.world.Fish, f)
		}
	}
}

func WithBall(x, z float64) Option {
	return func(h *Host) {
		h.world.Balls = append(h.world.Balls, model.Ball{ID: len(h.world.Balls), Pos: orb.Point{x, z}})
	}
}

func WithHole(x, z, headingDeg float64) Option {
	return func(h *Host) {
		h.world.Holes = append(h.world.Holes, model.Hole{ID: len(h.world.Holes), Pos: orb.Point{x, z}, Heading: geom.Radians(headingDeg)})
	}
}

func WithCycles(total int) Option {
	return func(h *Host) { h.world.RemainingCycles = total }
}

func WithFrozen(ids ...int) Option {
	return func(h *Host) {
		for _, id := range ids {
			h.Frozen[id] = true
		}
	}
}

func New(table *quantize.Table, cycleMs int, opts ...Option) *Host {
	h := &Host{
		Table:        table,
		CycleMs:      cycleMs,
		HeadOffsetMm: 190,
		BallRadiusMm: 58,
		HoleRadiusMm: 100,
		Frozen:       map[int]bool{},
	}
	h.world.CycleMs = cycleMs
	h.world.RemainingCycles = 100000
	h.world.Flags = map[string]int{}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Fish places a fish at (x, z) facing headingDeg.
func Fish(x, z, headingDeg float64) model.Fish {
	return model.Fish{Pose: model.Pose{Pos: orb.Point{x, z}, Heading: geom.Radians(headingDeg)}}
}

// Snapshot returns a copy the caller may keep across cycles.
func (h *Host) Snapshot() *model.World {
	w := h.world
	w.Fish = append([]model.Fish(nil), h.world.Fish...)
	w.Balls = append([]model.Ball(nil), h.world.Balls...)
	w.Holes = append([]model.Hole(nil), h.world.Holes...)
	w.Flags = make(map[string]int, len(h.world.Flags))
	for k, v := range h.world.Flags {
		w.Flags[k] = v
	}
	return &w
}

// Apply advances the world by one cycle under cmds.
func (h *Host) Apply(cmds []model.Command) {
	dt := float64(h.CycleMs) / 1000
	for i := range h.world.Fish {
		f := &h.world.Fish[i]
		if i >= len(cmds) || h.Frozen[i] {
			f.Vel = orb.Point{}
			f.AngVel = 0
			continue
		}
		c := cmds[i].Clamped()
		v := h.Table.SpeedOf(c.Speed)
		w := h.Table.RateOf(c.Turn)
		f.Heading = geom.Normalize(f.Heading + w*dt)
		f.Vel = orb.Point{v * math.Cos(f.Heading), v * math.Sin(f.Heading)}
		f.AngVel = w
		f.Pos = orb.Point{f.Pos[0] + f.Vel[0]*dt, f.Pos[1] + f.Vel[1]*dt}
		h.push(f, dt)
	}
	h.world.Cycle++
	h.world.ElapsedMs += int64(h.CycleMs)
	if h.world.RemainingCycles > 0 {
		h.world.RemainingCycles--
	}
}

func (h *Host) push(f *model.Fish, dt float64) {
	head := geom.Offset(f.Pos, f.Heading, h.HeadOffsetMm)
	for bi := range h.world.Balls {
		b := &h.world.Balls[bi]
		if b.InHole {
			continue
		}
		if geom.PlanarDistance(head, b.Pos) > h.BallRadiusMm || f.Speed() == 0 {
			continue
		}
		b.Pos = orb.Point{b.Pos[0] + f.Vel[0]*dt, b.Pos[1] + f.Vel[1]*dt}
		for _, hole := range h.world.Holes {
			if geom.PlanarDistance(b.Pos, hole.Pos) < h.HoleRadiusMm {
				b.InHole = true
				h.world.Flags[model.BallFlag(bi)] = 1
			}
		}
	}
}

// Run drives decide for n cycles and returns every command slice it produced.
func (h *Host) Run(n int, decide func(*model.World) []model.Command) [][]model.Command {
	out := make([][]model.Command, 0, n)
	for i := 0; i < n; i++ {
		cmds := decide(h.Snapshot())
		out = append(out, cmds)
		h.Apply(cmds)
	}
	return out
}
