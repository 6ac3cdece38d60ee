package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"aquapolo.ai/internal/persistence/indexdb"
)

func openIndex(fs *flag.FlagSet, args []string) *indexdb.SQLiteIndex {
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/runs.sqlite)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "runs.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "index:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return idx
}

func runsCmd(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 20, "result limit (0: all)")
	asJSON := fs.Bool("json", false, "print one JSON object per run")
	idx := openIndex(fs, args)
	defer idx.Close()

	runs, err := idx.ListRuns(context.Background(), *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range runs {
		if *asJSON {
			_ = enc.Encode(r)
			continue
		}
		fmt.Println(formatRun(r, time.Now()))
	}
}

func formatRun(r indexdb.RunSummary, now time.Time) string {
	end := "running or lost"
	if res := r.Result; res != nil {
		end = fmt.Sprintf("%s cycles, %d invalid, %d in hole, %s",
			humanize.Comma(int64(res.Cycles)), res.Invalid, res.BallsInHole, res.EndReason)
	}
	return fmt.Sprintf("%s  %-8s %-12s fish=%d started %s  transitions=%s  %s",
		r.RunID, r.Strategy, r.Team, r.FishCount,
		humanize.RelTime(r.StartedAt, now, "ago", "from now"),
		humanize.Comma(int64(r.Transitions)), end)
}

func transitionsCmd(args []string) {
	fs := flag.NewFlagSet("transitions", flag.ExitOnError)
	runID := fs.String("run", "", "run id (required)")
	machine := fs.String("machine", "", "machine filter, e.g. formation/lineup")
	idx := openIndex(fs, args)
	defer idx.Close()

	if strings.TrimSpace(*runID) == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}
	trs, err := idx.Transitions(context.Background(), *runID, *machine)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, t := range trs {
		_ = enc.Encode(t)
	}
}

func tuningCmd(args []string) {
	fs := flag.NewFlagSet("tuning", flag.ExitOnError)
	runID := fs.String("run", "", "run id (required)")
	idx := openIndex(fs, args)
	defer idx.Close()

	if strings.TrimSpace(*runID) == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}
	b, err := idx.TuningJSON(context.Background(), *runID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	fmt.Println(b)
}
