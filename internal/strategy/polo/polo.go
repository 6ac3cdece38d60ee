// Package polo pushes balls into holes: the team lines up in a kickoff formation, then each
// fish is matched to a free ball, dribbles it home and parks back at its kickoff slot.
package polo

import (
	"fmt"
	"log"

	"aquapolo.ai/internal/control/dribble"
	"aquapolo.ai/internal/control/pose"
	"aquapolo.ai/internal/sim/model"
	"aquapolo.ai/internal/sim/tuning"
	"aquapolo.ai/internal/strategy/choreo"
	"aquapolo.ai/internal/strategy/fsm"
)

const Name = "polo"

type Strategy struct {
	team    string
	sched   *fsm.Scheduler
	kickoff *fsm.Formation
	push    *PushPhase
}

func New(tu tuning.Tuning, logger *log.Logger, obs fsm.Observer) (*Strategy, error) {
	if tu.Polo.Kickoff.Shape == "" {
		return nil, fmt.Errorf("polo: kickoff formation has no shape")
	}
	table := tu.Table()
	poseCtrl := pose.New(&table, tu.Pose)
	field := tu.FieldBounds()

	kickoff := choreo.NewFormation(tu.Polo.Kickoff, tu.Formation, poseCtrl, field, tu.Field.MarginMm, tu.CycleMs, obs)
	push := &PushPhase{
		Cfg:     tu.Polo,
		Pose:    poseCtrl,
		Drib:    dribble.New(&table, tu.Dribble),
		Field:   field,
		Margin:  tu.Field.MarginMm,
		CycleMs: tu.CycleMs,
		Home:    kickoff.TargetOf,
		Obs:     obs,
		Logger:  logger,
	}
	return &Strategy{
		team:    tu.TeamName,
		sched:   fsm.NewScheduler(Name, obs, kickoff, push),
		kickoff: kickoff,
		push:    push,
	}, nil
}

func (s *Strategy) TeamName() string        { return s.team }
func (s *Strategy) Kickoff() *fsm.Formation { return s.kickoff }
func (s *Strategy) PushPhase() *PushPhase   { return s.push }
func (s *Strategy) Done() bool              { return s.sched.Done() }

func (s *Strategy) Decide(w *model.World) []model.Command {
	out := model.StopAll(len(w.Fish))
	s.sched.Step(w, out)
	return out
}
