package indexdb

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aquapolo.ai/internal/sim/tuning"
	"aquapolo.ai/internal/strategy/fsm"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTransition, runID: "r"}

	s.RecordTransition("r", fsm.Transition{Machine: "m", From: "A", To: "B"})
	s.RecordResult(Result{RunID: "r"})

	st := s.Stats()
	if st.DropTransitionTotal != 1 {
		t.Fatalf("DropTransitionTotal=%d want=1", st.DropTransitionTotal)
	}
	if st.DropResultTotal != 1 {
		t.Fatalf("DropResultTotal=%d want=1", st.DropResultTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_RunsTransitionsResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "runs.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := idx.StartRun(ctx, Run{RunID: "old", Team: "t", Strategy: "choreo", FishCount: 2, CycleMs: 100, TotalCycles: 50, StartedAt: t0}, tuning.Defaults()); err != nil {
		t.Fatalf("start old: %v", err)
	}
	if err := idx.StartRun(ctx, Run{RunID: "new", Team: "t", Strategy: "polo", FishCount: 3, CycleMs: 100, TotalCycles: 900, StartedAt: t0.Add(time.Hour)}, tuning.Defaults()); err != nil {
		t.Fatalf("start new: %v", err)
	}

	obs := idx.Observer("new")
	obs.OnTransition(fsm.Transition{Machine: "formation/kickoff", From: "INIT", To: "LOAD_TARGETS", Cycle: 0})
	obs.OnTransition(fsm.Transition{Machine: "fish0/approach", From: "APPROACH", To: "TIMEOUT", Reason: "timeout", Cycle: 40})
	obs.OnTransition(fsm.Transition{Machine: "formation/kickoff", From: "CONVERGE", To: "HOLD", Cycle: 12})
	idx.RecordResult(Result{RunID: "new", Cycles: 900, Invalid: 2, BallsInHole: 1, EndReason: "time"})

	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	runs, err := idx.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "new" || runs[1].RunID != "old" {
		t.Fatalf("runs=%+v", runs)
	}
	if runs[0].Transitions != 3 || runs[1].Transitions != 0 {
		t.Fatalf("transition counts new=%d old=%d", runs[0].Transitions, runs[1].Transitions)
	}
	r := runs[0].Result
	if r == nil || r.Cycles != 900 || r.Invalid != 2 || r.BallsInHole != 1 || r.EndReason != "time" {
		t.Fatalf("result=%+v", r)
	}
	if runs[1].Result != nil {
		t.Fatalf("old run has no result, got %+v", runs[1].Result)
	}
	if !runs[0].StartedAt.Equal(t0.Add(time.Hour)) || len(runs[0].TuningDigest) != 64 {
		t.Fatalf("started=%v digest=%q", runs[0].StartedAt, runs[0].TuningDigest)
	}

	trs, err := idx.Transitions(ctx, "new", "formation/kickoff")
	if err != nil {
		t.Fatalf("transitions: %v", err)
	}
	if len(trs) != 2 || trs[0].To != "LOAD_TARGETS" || trs[1].To != "HOLD" {
		t.Fatalf("formation transitions=%+v", trs)
	}
	all, _ := idx.Transitions(ctx, "new", "")
	if len(all) != 3 || all[1].Reason != "timeout" || all[1].Cycle != 40 {
		t.Fatalf("all transitions=%+v", all)
	}

	limited, _ := idx.ListRuns(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("limit ignored: %d", len(limited))
	}

	tj, err := idx.TuningJSON(ctx, "old")
	if err != nil || !strings.Contains(tj, "aquapolo/1") {
		t.Fatalf("tuning json err=%v body=%.80s", err, tj)
	}
	if _, err := idx.TuningJSON(ctx, "missing"); err == nil {
		t.Fatalf("expected missing run error")
	}
}

func TestSQLiteIndex_RecordAfterCloseIsDropped(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "runs.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	idx.RecordTransition("r", fsm.Transition{Machine: "m", From: "A", To: "B"})
	idx.RecordResult(Result{RunID: "r"})
	idx.Observer("r").OnTransition(fsm.Transition{Machine: "m", From: "B", To: "C"})

	st := idx.Stats()
	if st.DropTransitionTotal != 0 || st.DropResultTotal != 0 || st.QueueDepth != 0 {
		t.Fatalf("stats after close=%+v", st)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error")
	}
}
