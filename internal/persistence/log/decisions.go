package log

import (
	"path/filepath"

	"aquapolo.ai/internal/sim/model"
	"aquapolo.ai/internal/strategy/fsm"
)

const (
	KindCycle      = "cycle"
	KindTransition = "transition"
	KindEnd        = "end"
)

// Entry is one line of the decision trace.
type Entry struct {
	Kind       string          `json:"kind"`
	RunID      string          `json:"run_id,omitempty"`
	Cycle      int             `json:"cycle"`
	Invalid    bool            `json:"invalid,omitempty"`
	World      *model.World    `json:"world,omitempty"`
	Commands   []model.Command `json:"commands,omitempty"`
	Transition *fsm.Transition `json:"transition,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// DecisionLogger writes the per-cycle decision trace of one run.
type DecisionLogger struct {
	w     *JSONLZstdWriter
	runID string
}

const tracePrefix = "decisions"

func NewDecisionLogger(dir, runID string) *DecisionLogger {
	return &DecisionLogger{w: NewJSONLZstdWriter(filepath.Join(dir, "trace"), tracePrefix), runID: runID}
}

// TraceFiles lists the decision trace files written under dir.
func TraceFiles(dir string) ([]string, error) {
	return Files(filepath.Join(dir, "trace"), tracePrefix)
}

// WriteCycle records one answered frame with the world it was decided on, so a replay can
// feed the same worlds to a fresh strategy. w is nil for frames that failed validation.
func (l *DecisionLogger) WriteCycle(cycle int, w *model.World, cmds []model.Command) error {
	return l.w.Write(Entry{Kind: KindCycle, RunID: l.runID, Cycle: cycle, World: w, Commands: cmds, Invalid: w == nil})
}

func (l *DecisionLogger) WriteTransition(t fsm.Transition) error {
	return l.w.Write(Entry{Kind: KindTransition, RunID: l.runID, Cycle: t.Cycle, Transition: &t})
}

func (l *DecisionLogger) WriteEnd(cycle int, reason string) error {
	return l.w.Write(Entry{Kind: KindEnd, RunID: l.runID, Cycle: cycle, Reason: reason})
}

// OnTransition lets the logger observe state machines directly. Write errors are dropped;
// the trace is best effort.
func (l *DecisionLogger) OnTransition(t fsm.Transition) { _ = l.WriteTransition(t) }

func (l *DecisionLogger) Lines() int64 { return l.w.Lines() }
func (l *DecisionLogger) Close() error { return l.w.Close() }
