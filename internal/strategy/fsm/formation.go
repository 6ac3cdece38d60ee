package fsm

import (
	"fmt"

	"github.com/paulmach/orb"

	"aquapolo.ai/internal/control/assign"
	"aquapolo.ai/internal/control/pose"
	"aquapolo.ai/internal/sim/model"
)

type Stage int

const (
	StageInit Stage = iota
	StageLoadTargets
	StageAssign
	StageConverge
	StageHold
	StageTimeout
	StageDone

	stageCount
)

var stageNames = [stageCount]string{
	StageInit:        "INIT",
	StageLoadTargets: "LOAD_TARGETS",
	StageAssign:      "ASSIGN",
	StageConverge:    "CONVERGE",
	StageHold:        "HOLD",
	StageTimeout:     "TIMEOUT",
	StageDone:        "DONE",
}

func (s Stage) String() string {
	if s < 0 || s >= stageCount {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// allowed lists the legal successors of each stage.
var allowed = [stageCount][]Stage{
	StageInit:        {StageLoadTargets},
	StageLoadTargets: {StageAssign},
	StageAssign:      {StageConverge},
	StageConverge:    {StageHold, StageTimeout},
	StageHold:        {StageDone},
	StageTimeout:     {StageDone},
	StageDone:        nil,
}

func canMove(from, to Stage) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TargetSource produces the formation's target poses, one per slot.
type TargetSource func(w *model.World) []model.Target

// ArrivalFunc decides whether a fish counts as on its target this cycle.
type ArrivalFunc func(fish model.Fish, t model.Target) bool

type FormationConfig struct {
	Name              string
	ConvergeTimeoutS  float64
	HoldS             float64
	AngleThresholdDeg float64
	DistThresholdMm   float64
	// StableCycles is how many consecutive arrived cycles each fish needs. Minimum 1.
	StableCycles      int
	// CycleMs is used when the host reports no cycle duration.
	CycleMs           int
}

// stageHandler runs one cycle of a stage and returns the stage to be in afterwards.
type stageHandler func(f *Formation, w *model.World, out []model.Command) (Stage, string)

var handlers = [stageCount]stageHandler{
	StageInit:        (*Formation).init,
	StageLoadTargets: (*Formation).loadTargets,
	StageAssign:      (*Formation).assign,
	StageConverge:    (*Formation).converge,
	StageHold:        (*Formation).hold,
	StageTimeout:     (*Formation).timeout,
	StageDone:        (*Formation).done,
}

// Formation moves every fish onto a target pose and holds them there.
type Formation struct {
	Cfg     FormationConfig
	Ctrl    *pose.Controller
	Targets TargetSource
	Arrived ArrivalFunc // nil uses Ctrl.Arrived
	Obs     Observer

	stage      Stage
	timer      int
	entered    bool
	targets    []model.Target
	assignment assign.Assignment
	states     []pose.State
	stable     []int

	convergeLimit int
	holdLimit     int
}

func NewFormation(cfg FormationConfig, ctrl *pose.Controller, src TargetSource, obs Observer) *Formation {
	if cfg.StableCycles < 1 {
		cfg.StableCycles = 1
	}
	return &Formation{Cfg: cfg, Ctrl: ctrl, Targets: src, Obs: obs}
}

func (f *Formation) Stage() Stage                  { return f.stage }
func (f *Formation) Assignment() assign.Assignment { return f.assignment }
func (f *Formation) TargetPoses() []model.Target   { return f.targets }
func (f *Formation) Limits() (converge, hold int)  { return f.convergeLimit, f.holdLimit }

// Reset puts the formation back to INIT so it reloads targets on the next step.
func (f *Formation) Reset() {
	f.stage = StageInit
	f.timer = 0
}

// Step runs one cycle and reports whether the formation is DONE. Stages that finish
// without commanding the fish chain into the next stage within the same cycle.
func (f *Formation) Step(w *model.World, out []model.Command) bool {
	for hops := 0; hops < int(stageCount); hops++ {
		next, reason := handlers[f.stage](f, w, out)
		if next == f.stage {
			break
		}
		f.moveTo(next, reason, w.Cycle)
	}
	return f.stage == StageDone
}

func (f *Formation) moveTo(to Stage, reason string, cycle int) {
	if !canMove(f.stage, to) {
		panic(fmt.Sprintf("formation %s: illegal transition %s -> %s", f.Cfg.Name, f.stage, to))
	}
	from := f.stage
	f.stage = to
	f.timer = 0
	notify(f.Obs, Transition{Machine: f.machine(), From: from.String(), To: to.String(), Reason: reason, Cycle: cycle})
}

func (f *Formation) machine() string {
	if f.Cfg.Name == "" {
		return "formation"
	}
	return "formation/" + f.Cfg.Name
}

func (f *Formation) init(w *model.World, out []model.Command) (Stage, string) {
	n := len(w.Fish)
	f.states = make([]pose.State, n)
	f.stable = make([]int, n)
	f.targets = nil
	f.assignment = nil
	ms := CycleMs(w, f.Cfg.CycleMs)
	f.convergeLimit = CyclesFor(f.Cfg.ConvergeTimeoutS, ms)
	f.holdLimit = CyclesFor(f.Cfg.HoldS, ms)
	return StageLoadTargets, "init"
}

func (f *Formation) loadTargets(w *model.World, out []model.Command) (Stage, string) {
	if f.Targets != nil {
		f.targets = f.Targets(w)
	}
	return StageAssign, fmt.Sprintf("%d targets", len(f.targets))
}

func (f *Formation) assign(w *model.World, out []model.Command) (Stage, string) {
	agents := make([]orb.Point, len(w.Fish))
	for i, fish := range w.Fish {
		agents[i] = fish.Pos
	}
	pts := make([]orb.Point, len(f.targets))
	for i, t := range f.targets {
		pts[i] = t.Pos
	}
	f.assignment = assign.Greedy(agents, pts)
	return StageConverge, "assigned"
}

func (f *Formation) converge(w *model.World, out []model.Command) (Stage, string) {
	if f.timer >= f.convergeLimit {
		return StageTimeout, "timeout"
	}
	f.timer++

	settled := true
	for i, fish := range w.Fish {
		t, ok := f.TargetOf(i)
		if !ok {
			out[i] = model.Stop
			continue
		}
		if f.arrived(fish, t) {
			f.stable[i]++
		} else {
			f.stable[i] = 0
		}
		if f.stable[i] < f.Cfg.StableCycles {
			settled = false
		}
		out[i] = f.drive(i, fish, t, w)
	}
	if settled {
		return StageHold, "converged"
	}
	return StageConverge, ""
}

func (f *Formation) hold(w *model.World, out []model.Command) (Stage, string) {
	if f.timer >= f.holdLimit {
		return StageDone, "held"
	}
	f.timer++
	for i, fish := range w.Fish {
		t, ok := f.TargetOf(i)
		if !ok {
			out[i] = model.Stop
			continue
		}
		out[i] = f.drive(i, fish, t, w)
	}
	return StageHold, ""
}

// timeout stops every fish for one cycle, then finishes.
func (f *Formation) timeout(w *model.World, out []model.Command) (Stage, string) {
	stopAll(out)
	if f.timer == 0 {
		f.timer++
		return StageTimeout, ""
	}
	return StageDone, "stopped"
}

func (f *Formation) done(w *model.World, out []model.Command) (Stage, string) {
	stopAll(out)
	return StageDone, ""
}

// TargetOf returns the pose assigned to fish i, if any.
func (f *Formation) TargetOf(i int) (model.Target, bool) {
	ti := f.assignment.Target(i)
	if ti == assign.Unassigned || ti >= len(f.targets) || i >= len(f.states) {
		return model.Target{}, false
	}
	return f.targets[ti], true
}

func (f *Formation) arrived(fish model.Fish, t model.Target) bool {
	if f.Arrived != nil {
		return f.Arrived(fish, t)
	}
	return f.Ctrl.Arrived(fish, t)
}

func (f *Formation) drive(i int, fish model.Fish, t model.Target, w *model.World) model.Command {
	return f.Ctrl.Step(&f.states[i], fish, t, f.Cfg.AngleThresholdDeg, f.Cfg.DistThresholdMm, CycleMs(w, f.Cfg.CycleMs))
}

func stopAll(out []model.Command) {
	for i := range out {
		out[i] = model.Stop
	}
}
