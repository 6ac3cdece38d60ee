package polo

import (
	"log"

	"github.com/paulmach/orb"

	"aquapolo.ai/internal/control/assign"
	"aquapolo.ai/internal/control/dribble"
	"aquapolo.ai/internal/control/geom"
	"aquapolo.ai/internal/control/pose"
	"aquapolo.ai/internal/sim/model"
	"aquapolo.ai/internal/sim/tuning"
	"aquapolo.ai/internal/strategy/fsm"
)

const (
	taskApproach = "approach"
	taskPush     = "push"
	taskPark     = "park"
)

// HomeFunc returns where fish i parks when its work is over.
type HomeFunc func(i int) (model.Target, bool)

// PushPhase gives each fish an agenda on its first cycle: fish matched to a ball approach,
// push and park; the others only park.
type PushPhase struct {
	Cfg    tuning.PoloTuning
	Pose   *pose.Controller
	Drib   *dribble.Controller
	Field  geom.Field
	Margin float64
	Home   HomeFunc
	Obs    fsm.Observer
	Logger *log.Logger

	// CycleMs is used when the host reports no cycle duration.
	CycleMs int

	started  bool
	agendas  []*fsm.Agenda
	ballOf   assign.Assignment
	retries  []int
	balls    []int
	finished bool
}

func (p *PushPhase) Agendas() []*fsm.Agenda { return p.agendas }

// BallOf returns the ball index fish i was sent after, or -1.
func (p *PushPhase) BallOf(i int) int {
	t := p.ballOf.Target(i)
	if t == assign.Unassigned {
		return -1
	}
	return p.balls[t]
}

func (p *PushPhase) Retries(i int) int {
	if i < 0 || i >= len(p.retries) {
		return 0
	}
	return p.retries[i]
}

func (p *PushPhase) Step(w *model.World, out []model.Command) bool {
	if !p.started {
		p.start(w)
	}
	done := true
	for i, fish := range w.Fish {
		if i >= len(p.agendas) {
			out[i] = model.Stop
			continue
		}
		out[i] = p.agendas[i].Step(w, fish)
		done = done && p.agendas[i].Done()
	}
	if done && !p.finished {
		p.finished = true
		p.logf("push phase finished at cycle %d", w.Cycle)
	}
	return done
}

func (p *PushPhase) start(w *model.World) {
	p.started = true
	ms := fsm.CycleMs(w, p.CycleMs)

	agents := make([]orb.Point, len(w.Fish))
	for i, f := range w.Fish {
		agents[i] = f.Pos
	}
	var free []orb.Point
	p.balls = p.balls[:0]
	if len(w.Holes) > 0 {
		for bi, b := range w.Balls {
			if !w.BallInHole(bi) {
				p.balls = append(p.balls, bi)
				free = append(free, b.Pos)
			}
		}
	}
	p.ballOf = assign.Greedy(agents, free)
	p.retries = make([]int, len(w.Fish))
	p.agendas = make([]*fsm.Agenda, len(w.Fish))

	for i, fish := range w.Fish {
		home := model.Target{Pos: fish.Pos, Heading: fish.Heading}
		if p.Home != nil {
			if h, ok := p.Home(i); ok {
				home = h
			}
		}
		park := fsm.NewTask(taskPark, &fsm.PoseManeuver{
			Ctrl:              p.Pose,
			Goal:              fsm.FixedGoal(home),
			AngleThresholdDeg: p.Cfg.ApproachAngleDeg,
			DistThresholdMm:   p.Cfg.ApproachDistMm,
			CycleMs:           p.CycleMs,
		}, fsm.CyclesFor(p.Cfg.ParkTimeoutS, ms))

		b := p.BallOf(i)
		if b < 0 {
			p.agendas[i] = fsm.NewAgenda(i, p.Obs, park)
			continue
		}
		hole := nearestHole(w.Holes, w.Balls[b].Pos)
		approach := fsm.NewTask(taskApproach, &approachManeuver{
			PoseManeuver: fsm.PoseManeuver{
				Ctrl:              p.Pose,
				Goal:              p.approachGoal(b, hole, w.Balls[b].Pos),
				AngleThresholdDeg: p.Cfg.ApproachAngleDeg,
				DistThresholdMm:   p.Cfg.ApproachDistMm,
				CycleMs:           p.CycleMs,
			},
			ball: b,
		}, fsm.CyclesFor(p.Cfg.ApproachTimeoutS, ms))
		push := fsm.NewTask(taskPush, &pushManeuver{
			ctrl:    p.Drib,
			params:  p.dribbleParams(),
			ball:    b,
			hole:    hole,
			regrip:  p.Cfg.RegripDistanceMm,
			cycleMs: p.CycleMs,
		}, fsm.CyclesFor(p.Cfg.PushTimeoutS, ms))

		a := fsm.NewAgenda(i, p.Obs, approach, push, park)
		a.Next = p.retry(i)
		p.agendas[i] = a
		p.logf("fish %d -> ball %d", i, b)
	}
}

// retry sends a fish back to its approach after a failed push while retries remain. A fish
// whose ball left the OBS goes straight to park.
func (p *PushPhase) retry(fish int) fsm.NextFunc {
	return func(a *fsm.Agenda, i int, t *fsm.Task, w *model.World) int {
		if b := p.BallOf(fish); b >= len(w.Balls) && t.Name != taskPark {
			p.logf("fish %d lost ball %d from the observation", fish, b)
			return a.IndexOf(taskPark)
		}
		if t.Name != taskPush || t.State() != fsm.TaskTimeout {
			return i + 1
		}
		if p.retries[fish] >= p.Cfg.MaxRetries {
			p.logf("fish %d gives up on ball %d (%s)", fish, p.BallOf(fish), t.Reason())
			return i + 1
		}
		p.retries[fish]++
		p.logf("fish %d retry %d/%d (%s)", fish, p.retries[fish], p.Cfg.MaxRetries, t.Reason())
		a.Rewind(a.IndexOf(taskApproach))
		return a.Index()
	}
}

// approachGoal aims behind the ball on the line to its hole. If the ball is missing from
// the world it keeps the last position seen.
func (p *PushPhase) approachGoal(ball int, hole, seen orb.Point) fsm.GoalFunc {
	return func(w *model.World, _ model.Fish) model.Target {
		if ball < len(w.Balls) {
			seen = w.Balls[ball].Pos
		}
		pos := seen
		h := dribble.PushHeading(pos, hole)
		pt := dribble.ApproachPoint(pos, h, p.Cfg.ApproachOffsetMm)
		return model.Target{Pos: p.Field.Clamp(pt, p.Margin), Heading: h}
	}
}

func (p *PushPhase) dribbleParams() dribble.Params {
	return dribble.Params{
		Theta1Deg:       p.Cfg.Theta1Deg,
		Theta2Deg:       p.Cfg.Theta2Deg,
		DistThresholdMm: p.Cfg.PushNearDistMm,
		FarSpeed:        p.Cfg.PushFarSpeed,
		NearSpeed:       p.Cfg.PushNearSpeed,
		StabilizeCycles: p.Cfg.StabilizeCycles,
		UseHead:         p.Cfg.UseHead,
	}
}

func (p *PushPhase) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf("polo: "+format, args...)
	}
}

func nearestHole(holes []model.Hole, from orb.Point) orb.Point {
	best := holes[0].Pos
	bd := geom.PlanarDistance(from, best)
	for _, h := range holes[1:] {
		if d := geom.PlanarDistance(from, h.Pos); d < bd {
			best, bd = h.Pos, d
		}
	}
	return best
}

// approachManeuver gives up when its ball disappears from the world.
type approachManeuver struct {
	fsm.PoseManeuver
	ball int
}

func (m *approachManeuver) Aborted(w *model.World, _ model.Fish) bool {
	return m.ball >= len(w.Balls)
}

// pushManeuver dribbles one ball toward its hole. It arrives when the host reports the ball
// in the hole and aborts when the ball drifts beyond the regrip distance.
type pushManeuver struct {
	ctrl    *dribble.Controller
	params  dribble.Params
	ball    int
	hole    orb.Point
	regrip  float64
	cycleMs int
}

func (m *pushManeuver) Command(w *model.World, fish model.Fish) model.Command {
	pos := w.Balls[m.ball].Pos
	p := m.params
	p.CycleMs = fsm.CycleMs(w, m.cycleMs)
	return m.ctrl.Step(p, fish, pos, dribble.PushHeading(pos, m.hole))
}

func (m *pushManeuver) Arrived(w *model.World, _ model.Fish) bool {
	return w.BallInHole(m.ball)
}

func (m *pushManeuver) Aborted(w *model.World, fish model.Fish) bool {
	if m.ball >= len(w.Balls) {
		return true
	}
	if w.BallInHole(m.ball) {
		return false
	}
	anchor := m.ctrl.Anchor(fish, m.params.UseHead)
	return geom.PlanarDistance(anchor, w.Balls[m.ball].Pos) > m.regrip
}

func (m *pushManeuver) Reset() {}
