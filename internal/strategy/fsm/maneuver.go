package fsm

import (
	"aquapolo.ai/internal/control/pose"
	"aquapolo.ai/internal/sim/model"
)

// GoalFunc resolves the destination pose for this cycle.
type GoalFunc func(w *model.World, fish model.Fish) model.Target

func FixedGoal(t model.Target) GoalFunc {
	return func(*model.World, model.Fish) model.Target { return t }
}

// PoseManeuver drives one fish to a pose with the two-phase controller.
type PoseManeuver struct {
	Ctrl              *pose.Controller
	Goal              GoalFunc
	AngleThresholdDeg float64
	DistThresholdMm   float64
	// CycleMs is used when the host reports no cycle duration.
	CycleMs           int

	st pose.State
}

func (m *PoseManeuver) Command(w *model.World, fish model.Fish) model.Command {
	return m.Ctrl.Step(&m.st, fish, m.Goal(w, fish), m.AngleThresholdDeg, m.DistThresholdMm, CycleMs(w, m.CycleMs))
}

func (m *PoseManeuver) Arrived(w *model.World, fish model.Fish) bool {
	return m.Ctrl.Arrived(fish, m.Goal(w, fish))
}

func (m *PoseManeuver) Reset() { m.st.Reset() }

func (m *PoseManeuver) State() pose.State { return m.st }

// CycleMs returns the host's cycle duration, else fallback, else DefaultCycleMs.
func CycleMs(w *model.World, fallback int) int {
	switch {
	case w.CycleMs > 0:
		return w.CycleMs
	case fallback > 0:
		return fallback
	default:
		return DefaultCycleMs
	}
}
