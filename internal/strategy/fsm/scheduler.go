package fsm

import (
	"fmt"

	"aquapolo.ai/internal/sim/model"
)

// Segment writes commands for every fish into out and reports when it is finished.
type Segment interface {
	Step(w *model.World, out []model.Command) bool
}

type SegmentFunc func(w *model.World, out []model.Command) bool

func (f SegmentFunc) Step(w *model.World, out []model.Command) bool { return f(w, out) }

// Scheduler plays segments in order. A segment that reports done hands over on the next
// cycle. After the last one every fish gets Stop.
type Scheduler struct {
	Name string
	Obs  Observer

	segs []Segment
	cur  int
}

func NewScheduler(name string, obs Observer, segs ...Segment) *Scheduler {
	return &Scheduler{Name: name, Obs: obs, segs: segs}
}

func (s *Scheduler) Index() int { return s.cur }
func (s *Scheduler) Done() bool { return s.cur >= len(s.segs) }

func (s *Scheduler) Step(w *model.World, out []model.Command) bool {
	if s.Done() {
		stopAll(out)
		return true
	}
	if s.segs[s.cur].Step(w, out) {
		from := s.cur
		s.cur++
		to := "END"
		if !s.Done() {
			to = fmt.Sprintf("segment%d", s.cur)
		}
		notify(s.Obs, Transition{Machine: s.machine(), From: fmt.Sprintf("segment%d", from), To: to, Reason: "done", Cycle: w.Cycle})
	}
	return s.Done()
}

func (s *Scheduler) machine() string {
	if s.Name == "" {
		return "scheduler"
	}
	return "scheduler/" + s.Name
}
