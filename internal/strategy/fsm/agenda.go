package fsm

import (
	"fmt"

	"aquapolo.ai/internal/sim/model"
)

// NextFunc picks the task to run after task i finished. Returning len(tasks) or more ends
// the agenda. Rewinding through Agenda.Rewind is allowed inside it.
type NextFunc func(a *Agenda, i int, t *Task, w *model.World) int

// Agenda runs an ordered list of tasks for one fish.
type Agenda struct {
	Fish int
	Obs  Observer
	Next NextFunc

	tasks []*Task
	cur   int
}

func NewAgenda(fish int, obs Observer, tasks ...*Task) *Agenda {
	a := &Agenda{Fish: fish, Obs: obs, tasks: tasks}
	for _, t := range tasks {
		t.Machine = a.name()
		t.Obs = obs
	}
	return a
}

func (a *Agenda) name() string { return fmt.Sprintf("fish%d", a.Fish) }

func (a *Agenda) Tasks() []*Task { return a.tasks }
func (a *Agenda) Index() int     { return a.cur }
func (a *Agenda) Done() bool     { return a.cur >= len(a.tasks) }

func (a *Agenda) Current() *Task {
	if a.Done() {
		return nil
	}
	return a.tasks[a.cur]
}

// IndexOf returns the position of the first task with the given name, or -1.
func (a *Agenda) IndexOf(name string) int {
	for i, t := range a.tasks {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// Rewind resets tasks i..current and makes task i current again.
func (a *Agenda) Rewind(i int) {
	if i < 0 || i >= len(a.tasks) {
		return
	}
	end := a.cur
	if end >= len(a.tasks) {
		end = len(a.tasks) - 1
	}
	for j := i; j <= end; j++ {
		a.tasks[j].Reset()
	}
	a.cur = i
}

// Step runs the current task. When it finishes, the agenda moves on for the next cycle;
// this cycle keeps the Stop the task emitted.
func (a *Agenda) Step(w *model.World, fish model.Fish) model.Command {
	t := a.Current()
	if t == nil {
		return model.Stop
	}
	cmd := t.Step(w, fish)
	if !t.Done() {
		return cmd
	}

	from := a.cur
	next := a.cur + 1
	if a.Next != nil {
		next = a.Next(a, a.cur, t, w)
	}
	if next < 0 {
		next = 0
	}
	if next < len(a.tasks) {
		a.tasks[next].Reset()
	}
	a.cur = next
	to := "END"
	if !a.Done() {
		to = a.tasks[a.cur].Name
	}
	notify(a.Obs, Transition{Machine: a.name(), From: a.tasks[from].Name, To: to, Reason: t.Reason(), Cycle: w.Cycle})
	return cmd
}
