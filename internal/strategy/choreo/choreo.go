// Package choreo plays the tuned formations one after the other: each formation converges,
// holds, then hands over to the next. After the last one every fish stops.
package choreo

import (
	"fmt"
	"log"

	"aquapolo.ai/internal/control/geom"
	"aquapolo.ai/internal/control/pose"
	"aquapolo.ai/internal/sim/model"
	"aquapolo.ai/internal/sim/tuning"
	"aquapolo.ai/internal/strategy/fsm"
)

const Name = "choreo"

type Strategy struct {
	team   string
	logger *log.Logger
	sched  *fsm.Scheduler
	forms  []*fsm.Formation
	ended  bool
}

func New(tu tuning.Tuning, logger *log.Logger, obs fsm.Observer) (*Strategy, error) {
	if len(tu.Formation.Formations) == 0 {
		return nil, fmt.Errorf("choreo: no formations configured")
	}
	table := tu.Table()
	ctrl := pose.New(&table, tu.Pose)
	field := tu.FieldBounds()

	s := &Strategy{team: tu.TeamName, logger: logger}
	segs := make([]fsm.Segment, 0, len(tu.Formation.Formations))
	for _, spec := range tu.Formation.Formations {
		f := NewFormation(spec, tu.Formation, ctrl, field, tu.Field.MarginMm, tu.CycleMs, obs)
		s.forms = append(s.forms, f)
		segs = append(segs, f)
	}
	s.sched = fsm.NewScheduler(Name, obs, segs...)
	if logger != nil {
		logger.Printf("choreo: %d formations", len(segs))
	}
	return s, nil
}

// NewFormation builds the formation machine for one spec. cycleMs is the fallback cycle
// duration for hosts that report none.
func NewFormation(spec tuning.FormationSpec, ft tuning.FormationTuning, ctrl *pose.Controller, field geom.Field, margin float64, cycleMs int, obs fsm.Observer) *fsm.Formation {
	return fsm.NewFormation(fsm.FormationConfig{
		Name:              spec.Name,
		ConvergeTimeoutS:  spec.ConvergeTimeoutS,
		HoldS:             spec.HoldS,
		AngleThresholdDeg: ft.AngleThresholdDeg,
		DistThresholdMm:   ft.DistThresholdMm,
		StableCycles:      ft.StableCycles,
		CycleMs:           cycleMs,
	}, ctrl, func(w *model.World) []model.Target {
		return Layout(spec, len(w.Fish), field, margin)
	}, obs)
}

func (s *Strategy) TeamName() string { return s.team }

func (s *Strategy) Formations() []*fsm.Formation { return s.forms }

func (s *Strategy) Done() bool { return s.sched.Done() }

func (s *Strategy) Decide(w *model.World) []model.Command {
	out := model.StopAll(len(w.Fish))
	if s.sched.Step(w, out) && !s.ended {
		s.ended = true
		if s.logger != nil {
			s.logger.Printf("choreo: all formations finished at cycle %d", w.Cycle)
		}
	}
	return out
}
