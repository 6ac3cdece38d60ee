package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	persistlog "aquapolo.ai/internal/persistence/log"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "runs":
			runsCmd(os.Args[2:])
			return
		case "transitions":
			transitionsCmd(os.Args[2:])
			return
		case "tuning":
			tuningCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd lists the run directories holding a decision trace, newest last.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "runs")
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	type row struct {
		name  string
		files int
		bytes int64
		mod   int64
	}
	var rows []row
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := persistlog.TraceFiles(filepath.Join(base, e.Name()))
		if err != nil || len(files) == 0 {
			continue
		}
		r := row{name: e.Name(), files: len(files)}
		for _, f := range files {
			if st, err := os.Stat(f); err == nil {
				r.bytes += st.Size()
				if m := st.ModTime().UnixNano(); m > r.mod {
					r.mod = m
				}
			}
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].mod < rows[j].mod })
	for _, r := range rows {
		fmt.Printf("%s\t%d files\t%s\n", r.name, r.files, humanize.Bytes(uint64(r.bytes)))
	}
}
