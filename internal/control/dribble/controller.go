// Package dribble pushes a ball with the fish body: steer onto a point behind the ball and
// nudge it along the push heading.
//
// The controller is stateless. Callers own timeout counters and choose when to move the
// target point.
package dribble

import (
	"math"

	"github.com/paulmach/orb"

	"aquapolo.ai/internal/control/geom"
	"aquapolo.ai/internal/control/quantize"
	"aquapolo.ai/internal/sim/model"
)

type Config struct {
	HeadOffsetMm       float64 `yaml:"head_offset_mm"`
	ClampRadiusMm      float64 `yaml:"clamp_radius_mm"`
	TravelTimeCeilingS float64 `yaml:"travel_time_ceiling_s"`
	CounterTurnOffset  int     `yaml:"counter_turn_offset"`
}

func DefaultConfig() Config {
	return Config{
		HeadOffsetMm:       190,
		ClampRadiusMm:      30,
		TravelTimeCeilingS: 2,
		CounterTurnOffset:  3,
	}
}

// Params are the per-call knobs. Theta1Deg must be below Theta2Deg.
type Params struct {
	Theta1Deg       float64
	Theta2Deg       float64
	DistThresholdMm float64
	FarSpeed        int
	NearSpeed       int
	StabilizeCycles int
	CycleMs         int
	UseHead         bool
}

type Controller struct {
	Table *quantize.Table
	Cfg   Config
}

func New(table *quantize.Table, cfg Config) *Controller {
	return &Controller{Table: table, Cfg: cfg}
}

// Anchor is the body point used for distance: the head tip or the body centre.
func (c *Controller) Anchor(fish model.Fish, useHead bool) orb.Point {
	if useHead {
		return geom.Offset(fish.Pos, fish.Heading, c.Cfg.HeadOffsetMm)
	}
	return fish.Pos
}

func (c *Controller) Step(p Params, fish model.Fish, target orb.Point, destHeading float64) model.Command {
	anchor := c.Anchor(fish, p.UseHead)
	d := geom.PlanarDistance(anchor, target)

	aim := destHeading
	if d >= c.Cfg.ClampRadiusMm {
		aim = geom.Bearing(geom.Sub(target, anchor))
	}
	err := geom.AngularDelta(aim, fish.Heading)
	absErr := math.Abs(err)

	cycleSec := float64(p.CycleMs) / 1000
	if cycleSec <= 0 {
		cycleSec = 0.1
	}

	// estimate first, overrides second
	speed := model.ClampCode(p.FarSpeed)
	if maxRate := c.Table.MaxRate(); absErr > 0 && maxRate > 0 {
		turnTime := absErr / maxRate
		speed = c.Table.SpeedCode(d / turnTime)
	}
	switch {
	case absErr > geom.Radians(p.Theta2Deg):
		speed = quantize.MinMovingSpeed
	case absErr < geom.Radians(p.Theta1Deg):
		if d > p.DistThresholdMm {
			speed = model.ClampCode(p.FarSpeed)
		} else {
			speed = model.ClampCode(p.NearSpeed)
		}
	}

	travel := c.Cfg.TravelTimeCeilingS
	if maxSpeed := c.Table.MaxSpeed(); maxSpeed > 0 {
		travel = math.Min(d/maxSpeed, c.Cfg.TravelTimeCeilingS)
	}
	if travel < cycleSec {
		travel = cycleSec
	}
	turn := c.Table.TurnCode(err / travel)

	if c.overshoots(fish.AngVel, err, p.StabilizeCycles, cycleSec) {
		off := c.Cfg.CounterTurnOffset
		if fish.AngVel > 0 {
			turn = model.NeutralTurn - off
		} else {
			turn = model.NeutralTurn + off
		}
	}
	return model.Command{Speed: speed, Turn: model.ClampCode(turn)}
}

// overshoots reports whether the current rotation, held for the stabilization window,
// would carry the heading past the remaining error.
func (c *Controller) overshoots(angVel, err float64, cycles int, cycleSec float64) bool {
	if angVel == 0 || angVel*err < 0 {
		return false
	}
	return math.Abs(angVel)*float64(cycles)*cycleSec > math.Abs(err)
}

// ApproachPoint is the spot offset mm behind the ball, opposite the push direction.
func ApproachPoint(ball orb.Point, pushHeading, offset float64) orb.Point {
	return geom.Offset(ball, pushHeading, -offset)
}

// PushHeading is the direction from the ball to the hole.
func PushHeading(ball, hole orb.Point) float64 {
	return geom.Bearing(geom.Sub(hole, ball))
}
