package main

import (
	"strings"
	"testing"

	persistlog "aquapolo.ai/internal/persistence/log"
	"aquapolo.ai/internal/sim/hosttest"
	"aquapolo.ai/internal/sim/model"
	"aquapolo.ai/internal/sim/tuning"
	"aquapolo.ai/internal/strategy"
)

func testTuning() tuning.Tuning {
	tu := tuning.Defaults()
	tu.Formation.Formations = []tuning.FormationSpec{
		{Name: "lane", Shape: "line", Center: [2]float64{1500, 1000}, SpacingMm: 400, HoldS: 1, ConvergeTimeoutS: 3},
	}
	tu.Normalize()
	return tu
}

// record runs a fresh choreo strategy against the stand-in host and traces every cycle.
func record(t *testing.T, dir string, cycles int) {
	t.Helper()
	tu := testTuning()
	l := persistlog.NewDecisionLogger(dir, "run-1")
	s, err := strategy.New("choreo", tu, strategy.Options{Observer: l})
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	table := tu.Table()
	h := hosttest.New(&table, tu.CycleMs, hosttest.WithFish(
		hosttest.Fish(300, 600, 0),
		hosttest.Fish(300, 1400, 45),
	))
	for k := 0; k < cycles; k++ {
		w := h.Snapshot()
		cmds := model.Fit(s.Decide(w), len(w.Fish))
		if err := l.WriteCycle(w.Cycle, w, cmds); err != nil {
			t.Fatalf("write: %v", err)
		}
		h.Apply(cmds)
	}
	if err := l.WriteCycle(cycles, nil, model.StopAll(2)); err != nil {
		t.Fatalf("write invalid: %v", err)
	}
	if err := l.WriteEnd(cycles+1, "time"); err != nil {
		t.Fatalf("write end: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestReplay_MatchesRecordedCommands(t *testing.T) {
	dir := t.TempDir()
	record(t, dir, 60)
	files, err := persistlog.TraceFiles(dir)
	if err != nil || len(files) == 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}

	s, err := strategy.New("choreo", testTuning(), strategy.Options{})
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	checked, err := replay(files, s, -1)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 60 {
		t.Fatalf("checked=%d want 60", checked)
	}

	sum, err := summarize(files, -1)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.RunID != "run-1" || sum.Cycles != 61 || sum.Invalid != 1 || sum.EndReason != "time" {
		t.Fatalf("summary=%+v", sum)
	}
	if sum.Transitions["formation/lane"] == 0 {
		t.Fatalf("formation transitions missing: %v", sum.Transitions)
	}
	if len(sum.DistanceMm) != 2 || sum.DistanceMm[0] <= 0 || sum.DistanceMm[1] <= 0 {
		t.Fatalf("distance=%v", sum.DistanceMm)
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	dir := t.TempDir()
	record(t, dir, 20)
	files, _ := persistlog.TraceFiles(dir)

	// Same fish, different formation center: the first converge commands differ.
	tu := testTuning()
	tu.Formation.Formations[0].Center = [2]float64{2500, 400}
	tu.Normalize()
	s, err := strategy.New("choreo", tu, strategy.Options{})
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	_, err = replay(files, s, -1)
	if err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestSummarize_ToCycle(t *testing.T) {
	dir := t.TempDir()
	record(t, dir, 30)
	files, _ := persistlog.TraceFiles(dir)
	sum, err := summarize(files, 9)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Cycles != 10 || sum.LastCycle != 9 || sum.EndReason != "" {
		t.Fatalf("summary=%+v", sum)
	}
}
