package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	persistlog "aquapolo.ai/internal/persistence/log"
	"aquapolo.ai/internal/sim/model"
)

func TestArchiveRun_CopiesTraceAndMeta(t *testing.T) {
	dataDir := t.TempDir()
	l := persistlog.NewDecisionLogger(filepath.Join(dataDir, "runs", "r1"), "r1")
	if err := l.WriteCycle(0, &model.World{}, model.StopAll(2)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.WriteEnd(1, "time"); err != nil {
		t.Fatalf("write end: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	now := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	dir, ok, err := ArchiveRun(dataDir, RunArchiveMeta{RunID: "r1", Strategy: "polo", Cycles: 1, EndReason: "time"}, now)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !ok {
		t.Fatalf("expected archived=true")
	}
	if want := filepath.Join(dataDir, "archives", "2026-03-01", "r1"); dir != want {
		t.Fatalf("dir=%s want %s", dir, want)
	}

	meta, err := ReadMeta(dir)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.RunID != "r1" || meta.Strategy != "polo" || len(meta.Files) != 1 {
		t.Fatalf("meta=%+v", meta)
	}
	got, err := os.ReadFile(filepath.Join(dir, meta.Files[0].Name))
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	sum := sha256.Sum256(got)
	if hex.EncodeToString(sum[:]) != meta.Files[0].SHA256 || int64(len(got)) != meta.Files[0].Bytes {
		t.Fatalf("checksum or size mismatch: %+v", meta.Files[0])
	}

	n := 0
	if err := persistlog.ReadJSONL(filepath.Join(dir, meta.Files[0].Name), func(persistlog.Entry) error { n++; return nil }); err != nil {
		t.Fatalf("archived trace unreadable: %v", err)
	}
	if n != 2 {
		t.Fatalf("archived lines=%d want 2", n)
	}
}

func TestArchiveRun_SkipsEmptyRuns(t *testing.T) {
	dataDir := t.TempDir()
	_, ok, err := ArchiveRun(dataDir, RunArchiveMeta{RunID: "r2", Cycles: 0}, time.Now())
	if err != nil || ok {
		t.Fatalf("zero-cycle run: ok=%v err=%v", ok, err)
	}
	_, ok, err = ArchiveRun(dataDir, RunArchiveMeta{RunID: "r3", Cycles: 5}, time.Now())
	if err != nil || ok {
		t.Fatalf("run without trace: ok=%v err=%v", ok, err)
	}
	if _, _, err := ArchiveRun(dataDir, RunArchiveMeta{}, time.Now()); err == nil {
		t.Fatalf("expected error for empty run id")
	}
}
