package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"aquapolo.ai/internal/strategy/fsm"
)

// RunSummary joins a run with its result, if any, and its transition count.
type RunSummary struct {
	Run
	TuningDigest string
	Transitions  int
	Result       *Result
}

// ListRuns returns the most recent runs first. A limit <= 0 means no limit.
func (s *SQLiteIndex) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.team, r.strategy, r.fish_count, r.cycle_ms, r.total_cycles, r.started_at, r.tuning_digest,
			(SELECT COUNT(*) FROM transitions t WHERE t.run_id = r.run_id),
			res.cycles, res.invalid, res.balls_in_hole, res.end_reason, res.ended_at
		FROM runs r LEFT JOIN results res ON res.run_id = r.run_id
		ORDER BY r.started_at DESC, r.run_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs      RunSummary
			started string
			cycles  sql.NullInt64
			invalid sql.NullInt64
			balls   sql.NullInt64
			reason  sql.NullString
			ended   sql.NullString
		)
		if err := rows.Scan(&rs.RunID, &rs.Team, &rs.Strategy, &rs.FishCount, &rs.CycleMs, &rs.TotalCycles, &started, &rs.TuningDigest,
			&rs.Transitions, &cycles, &invalid, &balls, &reason, &ended); err != nil {
			return nil, err
		}
		rs.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if cycles.Valid {
			res := &Result{
				RunID:       rs.RunID,
				Cycles:      int(cycles.Int64),
				Invalid:     int(invalid.Int64),
				BallsInHole: int(balls.Int64),
				EndReason:   reason.String,
			}
			res.EndedAt, _ = time.Parse(time.RFC3339Nano, ended.String)
			rs.Result = res
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// Transitions returns the recorded transitions of one run in emission order. An empty machine
// matches every machine.
func (s *SQLiteIndex) Transitions(ctx context.Context, runID, machine string) ([]fsm.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle, machine, from_state, to_state, COALESCE(reason, '')
		FROM transitions
		WHERE run_id = ? AND (? = '' OR machine = ?)
		ORDER BY seq`, runID, machine, machine)
	if err != nil {
		return nil, fmt.Errorf("transitions %s: %w", runID, err)
	}
	defer rows.Close()

	var out []fsm.Transition
	for rows.Next() {
		var t fsm.Transition
		if err := rows.Scan(&t.Cycle, &t.Machine, &t.From, &t.To, &t.Reason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TuningJSON returns the tuning a run was started with, as stored.
func (s *SQLiteIndex) TuningJSON(ctx context.Context, runID string) (string, error) {
	var b string
	err := s.db.QueryRowContext(ctx, `SELECT tuning_json FROM runs WHERE run_id = ?`, runID).Scan(&b)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("run %s not found", runID)
	}
	return b, err
}
