package polo

import (
	"fmt"
	"testing"

	"aquapolo.ai/internal/sim/hosttest"
	"aquapolo.ai/internal/sim/tuning"
	"aquapolo.ai/internal/strategy/fsm"
)

func poloTuning() tuning.Tuning {
	tu := tuning.Defaults()
	tu.Strategy = Name
	tu.Formation.StableCycles = 3
	tu.Polo.Kickoff = tuning.FormationSpec{
		Name:  "kickoff",
		Shape: "points",
		Points: []tuning.PointSpec{
			{X: 400, Z: 1000},
			{X: 400, Z: 1500},
		},
		ConvergeTimeoutS: 5,
		HoldS:            0.3,
	}
	tu.Normalize()
	return tu
}

type recorder []fsm.Transition

func (r *recorder) OnTransition(t fsm.Transition) { *r = append(*r, t) }

func (r recorder) count(machine, from, to string) int {
	n := 0
	for _, t := range r {
		if t.Machine == machine && (from == "" || t.From == from) && (to == "" || t.To == to) {
			n++
		}
	}
	return n
}

func TestStrategy_PushesBallIntoHole(t *testing.T) {
	tu := poloTuning()
	rec := &recorder{}
	s, err := New(tu, nil, rec)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	table := tu.Table()
	h := hosttest.New(&table, 100,
		hosttest.WithFish(hosttest.Fish(400, 1000, 0), hosttest.Fish(400, 1500, 0)),
		hosttest.WithBall(1200, 1000),
		hosttest.WithHole(2200, 1000, 0),
	)

	for k := 0; k < 1500 && !s.Done(); k++ {
		h.Apply(s.Decide(h.Snapshot()))
	}
	if !s.Done() {
		t.Fatalf("polo did not finish")
	}
	w := h.Snapshot()
	if !w.BallInHole(0) {
		t.Fatalf("ball at %v not in hole", w.Balls[0].Pos)
	}

	push := s.PushPhase()
	if push.BallOf(0) != 0 || push.BallOf(1) != -1 {
		t.Fatalf("ball assignment: fish0=%d fish1=%d", push.BallOf(0), push.BallOf(1))
	}
	if push.Retries(0) != 0 {
		t.Fatalf("retries=%d", push.Retries(0))
	}
	if got := len(push.Agendas()[1].Tasks()); got != 1 {
		t.Fatalf("ball-less fish has %d tasks, want park only", got)
	}
	if rec.count("fish0/push", "APPROACH", "ARRIVED") != 1 {
		t.Fatalf("push never arrived: %v", *rec)
	}
	if rec.count("fish0", "push", "park") != 1 {
		t.Fatalf("fish0 never moved on to park: %v", *rec)
	}
	if rec.count("formation/kickoff", "CONVERGE", "HOLD") != 1 {
		t.Fatalf("kickoff did not converge: %v", *rec)
	}
}

func TestStrategy_LostBallRetriesThenParks(t *testing.T) {
	tu := poloTuning()
	tu.Polo.ApproachTimeoutS = 1
	tu.Polo.ParkTimeoutS = 1
	tu.Polo.MaxRetries = 2
	rec := &recorder{}
	s, err := New(tu, nil, rec)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	table := tu.Table()
	// Fish 0 is pinned, so it never reaches the ball and every push aborts.
	h := hosttest.New(&table, 100,
		hosttest.WithFish(hosttest.Fish(400, 1000, 0), hosttest.Fish(400, 1500, 0)),
		hosttest.WithBall(1200, 1000),
		hosttest.WithHole(2200, 1000, 0),
		hosttest.WithFrozen(0),
	)

	for k := 0; k < 400 && !s.Done(); k++ {
		h.Apply(s.Decide(h.Snapshot()))
	}
	if !s.Done() {
		t.Fatalf("polo did not finish")
	}
	if got := s.PushPhase().Retries(0); got != 2 {
		t.Fatalf("retries=%d want 2", got)
	}
	if got := rec.count("fish0", "push", "approach"); got != 2 {
		t.Fatalf("rewinds=%d want 2: %v", got, *rec)
	}
	if got := rec.count("fish0", "push", "park"); got != 1 {
		t.Fatalf("push->park=%d want 1", got)
	}
	if got := rec.count("fish0/push", "APPROACH", "TIMEOUT"); got != 3 {
		t.Fatalf("push failures=%d want 3", got)
	}
	for _, tr := range *rec {
		if tr.Machine == "fish0/push" && tr.To == "TIMEOUT" && tr.Reason != "aborted" {
			t.Fatalf("push ended with %q, want aborted", tr.Reason)
		}
	}
	for i, c := range s.Decide(h.Snapshot()) {
		if !c.IsStop() {
			t.Fatalf("fish %d after finish: %+v", i, c)
		}
	}
}

func TestStrategy_BallLeavesObservationMidPush(t *testing.T) {
	tu := poloTuning()
	tu.Polo.ApproachTimeoutS = 10
	tu.Polo.PushTimeoutS = 10
	tu.Polo.ParkTimeoutS = 2
	rec := &recorder{}
	s, err := New(tu, nil, rec)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	table := tu.Table()
	h := hosttest.New(&table, 100,
		hosttest.WithFish(hosttest.Fish(400, 1000, 0), hosttest.Fish(400, 1500, 0)),
		hosttest.WithBall(1200, 1000),
		hosttest.WithBall(1200, 1500),
		hosttest.WithHole(2200, 1250, 0),
	)

	lost := -1
	for k := 0; k < 1500 && !s.Done(); k++ {
		w := h.Snapshot()
		if s.PushPhase().Agendas() != nil {
			if lost < 0 {
				for i := range w.Fish {
					if s.PushPhase().BallOf(i) == 1 {
						lost = i
					}
				}
				if lost < 0 {
					t.Fatalf("no fish was sent after ball 1")
				}
			}
			// the host stops reporting ball 1
			w.Balls = w.Balls[:1]
		}
		cmds := s.Decide(w)
		if len(cmds) != len(w.Fish) {
			t.Fatalf("cycle %d: %d commands for %d fish", w.Cycle, len(cmds), len(w.Fish))
		}
		h.Apply(cmds)
	}
	if !s.Done() {
		t.Fatalf("polo did not finish")
	}

	machine := fmt.Sprintf("fish%d", lost)
	aborted := false
	for _, tr := range *rec {
		if tr.Machine == machine+"/approach" && tr.To == "TIMEOUT" && tr.Reason == "aborted" {
			aborted = true
		}
	}
	if !aborted {
		t.Fatalf("approach of fish %d did not abort: %v", lost, *rec)
	}
	if got := rec.count(machine, "approach", "park"); got != 1 {
		t.Fatalf("approach->park=%d want 1", got)
	}
	if got := rec.count(machine+"/push", "", ""); got != 0 {
		t.Fatalf("fish %d started a push on a missing ball", lost)
	}
	if got := s.PushPhase().Retries(lost); got != 0 {
		t.Fatalf("retries=%d want 0", got)
	}
}

func TestStrategy_UsesTunedCycleWhenHostSendsNone(t *testing.T) {
	tu := poloTuning()
	tu.CycleMs = 50
	s, err := New(tu, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	table := tu.Table()
	h := hosttest.New(&table, 50,
		hosttest.WithFish(hosttest.Fish(400, 1000, 0), hosttest.Fish(400, 1500, 0)),
		hosttest.WithBall(1200, 1000),
		hosttest.WithHole(2200, 1000, 0),
	)

	for k := 0; k < 1500 && s.PushPhase().Agendas() == nil; k++ {
		w := h.Snapshot()
		w.CycleMs = 0
		h.Apply(s.Decide(w))
	}
	if s.PushPhase().Agendas() == nil {
		t.Fatalf("push phase never started")
	}

	converge, hold := s.Kickoff().Limits()
	if want := fsm.CyclesFor(tu.Polo.Kickoff.ConvergeTimeoutS, 50); converge != want {
		t.Fatalf("converge limit=%d want %d", converge, want)
	}
	if want := fsm.CyclesFor(tu.Polo.Kickoff.HoldS, 50); hold != want {
		t.Fatalf("hold limit=%d want %d", hold, want)
	}
	want := map[string]float64{
		"approach": tu.Polo.ApproachTimeoutS,
		"push":     tu.Polo.PushTimeoutS,
		"park":     tu.Polo.ParkTimeoutS,
	}
	for _, task := range s.PushPhase().Agendas()[0].Tasks() {
		if got, w := task.TimeoutCycles, fsm.CyclesFor(want[task.Name], 50); got != w {
			t.Fatalf("%s timeout=%d cycles want %d", task.Name, got, w)
		}
	}
}

func TestNew_RejectsMissingKickoff(t *testing.T) {
	tu := tuning.Defaults()
	tu.Polo.Kickoff = tuning.FormationSpec{}
	if _, err := New(tu, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}
