// Package indexdb keeps a queryable SQLite index of runs next to the decision trace.
// The zstd trace stays the source of truth; the index may drop rows under load.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"aquapolo.ai/internal/sim/tuning"
	"aquapolo.ai/internal/strategy/fsm"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTransition atomic.Uint64
	dropResult     atomic.Uint64
}

type reqKind int

const (
	reqTransition reqKind = iota + 1
	reqResult
)

type req struct {
	kind reqKind

	runID      string
	transition fsm.Transition
	result     Result
}

// Run describes one session with the host.
type Run struct {
	RunID       string
	Team        string
	Strategy    string
	FishCount   int
	CycleMs     int
	TotalCycles int
	StartedAt   time.Time
}

// Result is how a run ended.
type Result struct {
	RunID       string
	Cycles      int
	Invalid     int
	BallsInHole int
	EndReason   string
	EndedAt     time.Time
}

type Stats struct {
	DropTransitionTotal uint64
	DropResultTotal     uint64
	QueueDepth          int
	QueueCapacity       int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			team TEXT NOT NULL,
			strategy TEXT NOT NULL,
			fish_count INTEGER NOT NULL,
			cycle_ms INTEGER NOT NULL,
			total_cycles INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			tuning_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE TABLE IF NOT EXISTS transitions (
			run_id TEXT NOT NULL REFERENCES runs(run_id),
			seq INTEGER NOT NULL,
			cycle INTEGER NOT NULL,
			machine TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			reason TEXT,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_machine ON transitions(run_id, machine, cycle);`,
		`CREATE TABLE IF NOT EXISTS results (
			run_id TEXT PRIMARY KEY REFERENCES runs(run_id),
			cycles INTEGER NOT NULL,
			invalid INTEGER NOT NULL,
			balls_in_hole INTEGER NOT NULL,
			end_reason TEXT NOT NULL,
			ended_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`)
	return err
}

// Close drains the queue and closes the database. Record calls after Close are dropped
// silently. Close must not run concurrently with RecordTransition or RecordResult: the
// closed check and the send are not atomic, so callers keep recording and closing on the
// same goroutine.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// StartRun writes the run row synchronously so transitions can reference it.
func (s *SQLiteIndex) StartRun(ctx context.Context, r Run, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return fmt.Errorf("encode tuning: %w", err)
	}
	sum := sha256.Sum256(b)
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs(run_id,team,strategy,fish_count,cycle_ms,total_cycles,started_at,tuning_digest,tuning_json) VALUES(?,?,?,?,?,?,?,?,?)`,
		r.RunID, r.Team, r.Strategy, r.FishCount, r.CycleMs, r.TotalCycles,
		r.StartedAt.UTC().Format(time.RFC3339Nano), hex.EncodeToString(sum[:]), string(b),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	return nil
}

func (s *SQLiteIndex) RecordTransition(runID string, t fsm.Transition) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqTransition, runID: runID, transition: t}:
	default:
		s.dropTransition.Add(1)
	}
}

func (s *SQLiteIndex) RecordResult(r Result) {
	if s == nil || s.closed.Load() {
		return
	}
	if r.EndedAt.IsZero() {
		r.EndedAt = time.Now()
	}
	select {
	case s.ch <- req{kind: reqResult, runID: r.RunID, result: r}:
	default:
		s.dropResult.Add(1)
	}
}

// Observer records every transition of a state machine under runID.
func (s *SQLiteIndex) Observer(runID string) fsm.Observer {
	return fsm.ObserverFunc(func(t fsm.Transition) { s.RecordTransition(runID, t) })
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropTransitionTotal: s.dropTransition.Load(),
		DropResultTotal:     s.dropResult.Load(),
		QueueDepth:          len(s.ch),
		QueueCapacity:       cap(s.ch),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTransition, _ := s.db.Prepare(`INSERT OR REPLACE INTO transitions(run_id,seq,cycle,machine,from_state,to_state,reason) VALUES(?,?,?,?,?,?,?)`)
	insertResult, _ := s.db.Prepare(`INSERT OR REPLACE INTO results(run_id,cycles,invalid,balls_in_hole,end_reason,ended_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertTransition != nil {
			_ = insertTransition.Close()
		}
		if insertResult != nil {
			_ = insertResult.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second

		// transition sequence per run, assigned here so it follows queue order
		seqs = map[string]int{}
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		// an idle queue commits too: readers share the single connection
		if len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTransition:
			if insertTransition == nil {
				break
			}
			seq := seqs[r.runID]
			seqs[r.runID] = seq + 1
			t := r.transition
			if _, err := tx.Stmt(insertTransition).Exec(r.runID, seq, t.Cycle, t.Machine, t.From, t.To, t.Reason); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqResult:
			if insertResult == nil {
				break
			}
			res := r.result
			if _, err := tx.Stmt(insertResult).Exec(
				res.RunID, res.Cycles, res.Invalid, res.BallsInHole, res.EndReason,
				res.EndedAt.UTC().Format(time.RFC3339Nano),
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}
