package fsm

import (
	"aquapolo.ai/internal/sim/model"
)

// Maneuver is a control law bound to a goal. Command is called once per APPROACH cycle.
type Maneuver interface {
	Command(w *model.World, fish model.Fish) model.Command
	Arrived(w *model.World, fish model.Fish) bool
	Reset()
}

// Aborter is optionally implemented by maneuvers that can give up early, e.g. a push that
// lost its ball. An abort ends the task as TIMEOUT.
type Aborter interface {
	Aborted(w *model.World, fish model.Fish) bool
}

type TaskState int

const (
	TaskIdle TaskState = iota
	TaskApproach
	TaskArrived
	TaskTimeout
)

func (s TaskState) String() string {
	switch s {
	case TaskIdle:
		return "IDLE"
	case TaskApproach:
		return "APPROACH"
	case TaskArrived:
		return "ARRIVED"
	case TaskTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

type Task struct {
	Name          string
	M             Maneuver
	TimeoutCycles int // 0 disables the timeout

	Machine string
	Obs     Observer

	state  TaskState
	timer  int
	reason string
}

func NewTask(name string, m Maneuver, timeoutCycles int) *Task {
	return &Task{Name: name, M: m, TimeoutCycles: timeoutCycles}
}

func (t *Task) State() TaskState { return t.state }
func (t *Task) Timer() int       { return t.timer }

// Reason is why the task finished: "arrived", "timeout" or "aborted".
func (t *Task) Reason() string { return t.reason }

func (t *Task) Done() bool { return t.state == TaskArrived || t.state == TaskTimeout }

func (t *Task) Reset() {
	t.state = TaskIdle
	t.timer = 0
	t.reason = ""
	if t.M != nil {
		t.M.Reset()
	}
}

// Step advances the task by one cycle. The timeout check runs before the arrival check.
// The cycle that enters ARRIVED or TIMEOUT emits Stop, as does every later cycle.
func (t *Task) Step(w *model.World, fish model.Fish) model.Command {
	if t.state == TaskIdle {
		t.M.Reset()
		t.timer = 0
		t.move(TaskApproach, "start", w.Cycle)
	}
	if t.state != TaskApproach {
		return model.Stop
	}

	if t.TimeoutCycles > 0 && t.timer >= t.TimeoutCycles {
		t.move(TaskTimeout, "timeout", w.Cycle)
		return model.Stop
	}
	if ab, ok := t.M.(Aborter); ok && ab.Aborted(w, fish) {
		t.move(TaskTimeout, "aborted", w.Cycle)
		return model.Stop
	}
	if t.M.Arrived(w, fish) {
		t.move(TaskArrived, "arrived", w.Cycle)
		return model.Stop
	}
	t.timer++
	return t.M.Command(w, fish).Clamped()
}

func (t *Task) move(to TaskState, reason string, cycle int) {
	from := t.state
	t.state = to
	if to == TaskArrived || to == TaskTimeout {
		t.reason = reason
	}
	notify(t.Obs, Transition{Machine: t.label(), From: from.String(), To: to.String(), Reason: reason, Cycle: cycle})
}

func (t *Task) label() string {
	if t.Machine == "" {
		return "task/" + t.Name
	}
	return t.Machine + "/" + t.Name
}
