// Package pose drives a fish to a target pose with a two-phase stabilization law.
//
// Far from the goal the fish homes on a waypoint set back from the destination along the
// destination heading. Once inside the waypoint window the near-field feedback law takes over
// and stays in charge until the maneuver is reset.
package pose

import (
	"math"

	"github.com/paulmach/orb"

	"aquapolo.ai/internal/control/geom"
	"aquapolo.ai/internal/control/quantize"
	"aquapolo.ai/internal/sim/model"
)

type Config struct {
	FarSpeedCode     int     `yaml:"far_speed_code"`
	NearMaxSpeedCode int     `yaml:"near_max_speed_code"`
	WaypointWindow   float64 `yaml:"waypoint_window"`
	StopDistanceMm   float64 `yaml:"stop_distance_mm"`
	StopAngleDeg     float64 `yaml:"stop_angle_deg"`

	// Far field: ω = PNGain·λ̇ + HeadingGain·losErr.
	PNGain      float64 `yaml:"pn_gain"`
	HeadingGain float64 `yaml:"heading_gain"`

	// Near field gains.
	K1 float64 `yaml:"k1"`
	K2 float64 `yaml:"k2"`
	K3 float64 `yaml:"k3"`
}

func DefaultConfig() Config {
	return Config{
		FarSpeedCode:     14,
		NearMaxSpeedCode: 8,
		WaypointWindow:   0.2,
		StopDistanceMm:   150,
		StopAngleDeg:     10,
		PNGain:           3,
		HeadingGain:      1.5,
		K1:               1.0,
		K2:               1.5,
		K3:               0.004,
	}
}

// State is owned by the caller, one per maneuver instance. Times counts near-field cycles and
// is zero while the far-field phase is active.
type State struct {
	Times int
}

func (s *State) Reset()    { s.Times = 0 }
func (s State) Near() bool { return s.Times > 0 }

type Controller struct {
	Table *quantize.Table
	Cfg   Config
}

func New(table *quantize.Table, cfg Config) *Controller {
	return &Controller{Table: table, Cfg: cfg}
}

// Arrived reports whether the fish is within the stop tolerance of the destination pose.
func (c *Controller) Arrived(fish model.Fish, dest model.Target) bool {
	d := geom.PlanarDistance(fish.Pos, dest.Pos)
	e := geom.AngularDelta(dest.Heading, fish.Heading)
	return d < c.Cfg.StopDistanceMm && math.Abs(e) < geom.Radians(c.Cfg.StopAngleDeg)
}

// Step returns this cycle's command. Order: stop check, heading override, then phase.
func (c *Controller) Step(st *State, fish model.Fish, dest model.Target, angleThresholdDeg, distThresholdMm float64, cycleMs int) model.Command {
	if c.Arrived(fish, dest) {
		return model.Stop
	}

	waypoint := geom.Offset(dest.Pos, dest.Heading, -distThresholdMm)
	toWaypoint := geom.Sub(waypoint, fish.Pos)
	far := st.Times == 0 && geom.PlanarDistance(fish.Pos, waypoint) > c.Cfg.WaypointWindow*distThresholdMm

	var refErr float64
	if far {
		refErr = geom.AngularDelta(geom.Bearing(toWaypoint), fish.Heading)
	} else {
		refErr = geom.AngularDelta(dest.Heading, fish.Heading)
	}
	if math.Abs(refErr) > geom.Radians(angleThresholdDeg) {
		return model.Command{Speed: quantize.MinMovingSpeed, Turn: quantize.HardTurn(refErr)}
	}

	if far {
		st.Times = 0
		return c.farField(fish, toWaypoint, refErr)
	}
	st.Times++
	return c.nearField(st.Times, fish, dest, cycleMs)
}

func (c *Controller) farField(fish model.Fish, los orb.Point, losErr float64) model.Command {
	r2 := los[0]*los[0] + los[1]*los[1]
	var losRate float64
	if r2 > 0 {
		// target is stationary, so the relative velocity is the fish velocity reversed
		vx, vz := -fish.Vel[0], -fish.Vel[1]
		losRate = (los[0]*vz - los[1]*vx) / r2
	}
	omega := c.Cfg.PNGain*losRate + c.Cfg.HeadingGain*losErr
	return model.Command{
		Speed: model.ClampCode(c.Cfg.FarSpeedCode),
		Turn:  c.Table.TurnCode(omega),
	}
}

func (c *Controller) nearField(times int, fish model.Fish, dest model.Target, cycleMs int) model.Command {
	t := float64(times) * float64(cycleMs) / 1000
	h := math.Sin(t) / (1 + t)

	x, z := geom.ToLocalFrame(fish.Heading, fish.Pos, dest.Pos)
	e := geom.AngularDelta(dest.Heading, fish.Heading)

	u1 := c.Cfg.K1 * x
	u2 := c.Cfg.K2*e + c.Cfg.K3*z + c.Cfg.K3*h*x

	speed := 0
	if u1 > 0 {
		speed = c.Table.SpeedCode(u1)
		if c.Cfg.NearMaxSpeedCode > 0 && speed > c.Cfg.NearMaxSpeedCode {
			speed = c.Cfg.NearMaxSpeedCode
		}
	}
	return model.Command{Speed: speed, Turn: c.Table.TurnCode(u2)}
}
