package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"aquapolo.ai/internal/persistence/archive"
	"aquapolo.ai/internal/persistence/indexdb"
	persistlog "aquapolo.ai/internal/persistence/log"
	"aquapolo.ai/internal/protocol"
	"aquapolo.ai/internal/sim/model"
	"aquapolo.ai/internal/sim/tuning"
	"aquapolo.ai/internal/strategy"
	"aquapolo.ai/internal/strategy/fsm"
	"aquapolo.ai/internal/transport/ws"
)

func main() {
	var (
		url          = flag.String("url", "ws://localhost:8080/v1/ws", "host ws url")
		tuningPath   = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (empty: built-in defaults)")
		stratName    = flag.String("strategy", "", "strategy to run, overrides tuning ("+strings.Join(strategy.Names(), "|")+")")
		team         = flag.String("team", "", "team name, overrides tuning")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite run index")
		disableTrace = flag.Bool("disable_trace", false, "disable the zstd decision trace")
		validate     = flag.Bool("validate", true, "validate OBS frames against the embedded schema")
		readTimeout  = flag.Duration("read_timeout", 10*time.Second, "max wait for a host frame (0: forever)")
		quiet        = flag.Bool("quiet", false, "do not log state machine transitions")
		archiveRun   = flag.Bool("archive", false, "copy the finished trace under <data>/archives")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[fishbot] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(strings.TrimSpace(*tuningPath))
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if s := strings.TrimSpace(*stratName); s != "" {
		tune.Strategy = s
	}
	if s := strings.TrimSpace(*team); s != "" {
		tune.TeamName = s
	}

	runID := uuid.NewString()
	logger.Printf("run %s strategy=%s team=%s url=%s", runID, tune.Strategy, tune.TeamName, *url)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		observers fsm.Observers
		closers   []func() error
		trace     *persistlog.DecisionLogger
		idx       *indexdb.SQLiteIndex
	)
	if !*quiet {
		observers = append(observers, fsm.ObserverFunc(func(t fsm.Transition) {
			logger.Printf("cycle %d %s %s -> %s %s", t.Cycle, t.Machine, t.From, t.To, t.Reason)
		}))
	}
	if !*disableTrace {
		trace = persistlog.NewDecisionLogger(filepath.Join(*dataDir, "runs", runID), runID)
		observers = append(observers, trace)
		closers = append(closers, trace.Close)
	}
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "runs.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		observers = append(observers, idx.Observer(runID))
		closers = append(closers, idx.Close)
	}

	strat, err := strategy.New(tune.Strategy, tune, strategy.Options{Logger: logger, Observer: observers})
	if err != nil {
		logger.Fatalf("strategy: %v", err)
	}

	var validator *protocol.Validator
	if *validate {
		validator, err = protocol.NewValidator()
		if err != nil {
			logger.Fatalf("schemas: %v", err)
		}
	}

	var (
		welcomed    bool
		ballsInHole int
	)
	client := &ws.Client{
		URL:         *url,
		TeamName:    tune.TeamName,
		Strategy:    tune.Strategy,
		RunID:       runID,
		Decider:     strat,
		Validator:   validator,
		Logger:      logger,
		ReadTimeout: *readTimeout,
		Hooks: ws.Hooks{
			OnWelcome: func(w protocol.WelcomeMsg) {
				welcomed = true
				if idx == nil {
					return
				}
				run := indexdb.Run{
					RunID:       runID,
					Team:        tune.TeamName,
					Strategy:    tune.Strategy,
					FishCount:   w.FishCount,
					CycleMs:     w.CycleMs,
					TotalCycles: w.TotalCycles,
				}
				if err := idx.StartRun(ctx, run, tune); err != nil {
					logger.Printf("index: %v", err)
				}
			},
			OnCycle: func(cycle int, w *model.World, cmds []model.Command) {
				if w != nil {
					ballsInHole = countInHole(w)
				}
				if trace != nil {
					if err := trace.WriteCycle(cycle, w, cmds); err != nil {
						logger.Printf("trace cycle %d: %v", cycle, err)
					}
				}
			},
		},
	}

	res, runErr := client.Run(ctx)
	reason := res.EndReason
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		reason = "cancelled"
	default:
		reason = fmt.Sprintf("error: %v", runErr)
	}

	if trace != nil {
		if err := trace.WriteEnd(res.Cycles, reason); err != nil {
			logger.Printf("trace end: %v", err)
		}
	}
	if idx != nil && welcomed {
		idx.RecordResult(indexdb.Result{
			RunID:       runID,
			Cycles:      res.Cycles,
			Invalid:     res.Invalid,
			BallsInHole: ballsInHole,
			EndReason:   reason,
		})
	}

	errs := make([]error, 0, len(closers))
	for _, c := range closers {
		errs = append(errs, c())
	}
	if idx != nil {
		if st := idx.Stats(); st.DropTransitionTotal+st.DropResultTotal > 0 {
			logger.Printf("index dropped %s transitions, %s results",
				humanize.Comma(int64(st.DropTransitionTotal)), humanize.Comma(int64(st.DropResultTotal)))
		}
	}
	if trace != nil {
		logger.Printf("trace: %s lines", humanize.Comma(trace.Lines()))
	}
	logger.Printf("run %s done: %s cycles, %d invalid, %d bad acts, %d balls in hole, reason=%s",
		runID, humanize.Comma(int64(res.Cycles)), res.Invalid, res.InvalidActs, ballsInHole, reason)

	if err := multierr.Combine(errs...); err != nil {
		logger.Printf("close: %v", err)
	}
	if *archiveRun && trace != nil {
		dir, ok, err := archive.ArchiveRun(*dataDir, archive.RunArchiveMeta{
			RunID:       runID,
			Team:        tune.TeamName,
			Strategy:    tune.Strategy,
			Cycles:      res.Cycles,
			Invalid:     res.Invalid,
			BallsInHole: ballsInHole,
			EndReason:   reason,
		}, time.Now())
		switch {
		case err != nil:
			logger.Printf("archive: %v", err)
		case ok:
			logger.Printf("archived run to %s", dir)
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}

func countInHole(w *model.World) int {
	n := 0
	for i := range w.Balls {
		if w.BallInHole(i) {
			n++
		}
	}
	return n
}
