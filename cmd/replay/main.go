package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	persistlog "aquapolo.ai/internal/persistence/log"
	"aquapolo.ai/internal/sim/model"
	"aquapolo.ai/internal/sim/tuning"
	"aquapolo.ai/internal/strategy"
)

func main() {
	var (
		runDir     = flag.String("run", "", "run directory holding trace/decisions-*.jsonl.zst")
		dataDir    = flag.String("data", "./data", "runtime data directory (with -id)")
		runID      = flag.String("id", "", "run id under <data>/runs (alternative to -run)")
		verify     = flag.Bool("verify", false, "re-run the strategy on the recorded worlds and compare commands")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning used by -verify")
		stratName  = flag.String("strategy", "", "strategy used by -verify (default: tuning)")
		toCycle    = flag.Int("to_cycle", -1, "stop at cycle (inclusive, optional)")
	)
	flag.Parse()

	dir := strings.TrimSpace(*runDir)
	if dir == "" && strings.TrimSpace(*runID) != "" {
		dir = filepath.Join(*dataDir, "runs", *runID)
	}
	if dir == "" {
		fmt.Fprintln(os.Stderr, "missing -run or -id")
		os.Exit(2)
	}
	files, err := persistlog.TraceFiles(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list trace:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no trace files found in", dir)
		os.Exit(1)
	}

	sum, err := summarize(files, *toCycle)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read trace:", err)
		os.Exit(1)
	}
	sum.print(os.Stdout)

	if !*verify {
		return
	}
	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	name := tune.Strategy
	if s := strings.TrimSpace(*stratName); s != "" {
		name = s
	}
	strat, err := strategy.New(name, tune, strategy.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "strategy:", err)
		os.Exit(1)
	}
	checked, err := replay(files, strat, *toCycle)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%s cycles\n", humanize.Comma(int64(checked)))
}

type summary struct {
	RunID       string
	Cycles      int
	Invalid     int
	FishCycles  int
	Stops       int
	Transitions map[string]int
	DistanceMm  []float64
	BallsInHole int
	EndReason   string
	LastCycle   int
}

// summarize folds every trace line up to toCycle (-1: all) into one summary.
func summarize(files []string, toCycle int) (*summary, error) {
	s := &summary{Transitions: map[string]int{}}
	var last []orb.Point
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(e persistlog.Entry) error {
			if toCycle >= 0 && e.Cycle > toCycle {
				return nil
			}
			if s.RunID == "" {
				s.RunID = e.RunID
			}
			switch e.Kind {
			case persistlog.KindCycle:
				s.Cycles++
				s.LastCycle = e.Cycle
				s.FishCycles += len(e.Commands)
				for _, c := range e.Commands {
					if c.IsStop() {
						s.Stops++
					}
				}
				if e.Invalid || e.World == nil {
					s.Invalid++
					return nil
				}
				if len(s.DistanceMm) < len(e.World.Fish) {
					s.DistanceMm = append(s.DistanceMm, make([]float64, len(e.World.Fish)-len(s.DistanceMm))...)
				}
				for i, f := range e.World.Fish {
					if i < len(last) {
						s.DistanceMm[i] += planar.Distance(last[i], f.Pos)
					}
				}
				last = last[:0]
				for _, f := range e.World.Fish {
					last = append(last, f.Pos)
				}
				s.BallsInHole = 0
				for i := range e.World.Balls {
					if e.World.BallInHole(i) {
						s.BallsInHole++
					}
				}
			case persistlog.KindTransition:
				if e.Transition != nil {
					s.Transitions[e.Transition.Machine]++
				}
			case persistlog.KindEnd:
				s.EndReason = e.Reason
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *summary) print(w io.Writer) {
	fmt.Fprintf(w, "run %s: %s cycles (last=%d), %s invalid, end=%q\n",
		s.RunID, humanize.Comma(int64(s.Cycles)), s.LastCycle, humanize.Comma(int64(s.Invalid)), s.EndReason)
	if s.FishCycles > 0 {
		fmt.Fprintf(w, "stop commands: %s of %s (%.1f%%)\n",
			humanize.Comma(int64(s.Stops)), humanize.Comma(int64(s.FishCycles)), 100*float64(s.Stops)/float64(s.FishCycles))
	}
	for i, d := range s.DistanceMm {
		fmt.Fprintf(w, "fish %d swam %s mm\n", i, humanize.Commaf(float64(int64(d))))
	}
	fmt.Fprintf(w, "balls in hole: %d\n", s.BallsInHole)
	machines := make([]string, 0, len(s.Transitions))
	for m := range s.Transitions {
		machines = append(machines, m)
	}
	sort.Strings(machines)
	for _, m := range machines {
		fmt.Fprintf(w, "transitions %-24s %d\n", m, s.Transitions[m])
	}
}

// replay feeds each recorded valid world to strat in order and checks that it decides the
// commands that were sent. Frames that failed validation never reached the strategy and are
// skipped.
func replay(files []string, strat strategy.Strategy, toCycle int) (int, error) {
	checked := 0
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(e persistlog.Entry) error {
			if e.Kind != persistlog.KindCycle || e.Invalid || e.World == nil {
				return nil
			}
			if toCycle >= 0 && e.Cycle > toCycle {
				return nil
			}
			got := model.Fit(strat.Decide(e.World), len(e.World.Fish))
			if len(got) != len(e.Commands) {
				return fmt.Errorf("cycle %d: %d commands, trace has %d (file=%s)", e.Cycle, len(got), len(e.Commands), filepath.Base(path))
			}
			for i := range got {
				if got[i] != e.Commands[i] {
					return fmt.Errorf("command mismatch at cycle %d fish %d: got=%+v want=%+v", e.Cycle, i, got[i], e.Commands[i])
				}
			}
			checked++
			return nil
		})
		if err != nil {
			return checked, err
		}
	}
	return checked, nil
}
