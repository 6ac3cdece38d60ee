package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	persistlog "aquapolo.ai/internal/persistence/log"
)

type RunArchiveMeta struct {
	RunID       string         `json:"run_id"`
	Team        string         `json:"team"`
	Strategy    string         `json:"strategy"`
	Cycles      int            `json:"cycles"`
	Invalid     int            `json:"invalid"`
	BallsInHole int            `json:"balls_in_hole"`
	EndReason   string         `json:"end_reason"`
	CreatedAt   string         `json:"created_at"`
	Files       []ArchivedFile `json:"files"`
}

type ArchivedFile struct {
	Name   string `json:"name"`
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// ArchiveRun copies the decision trace of a finished run from `dataDir/runs/<id>/` into
// `dataDir/archives/<YYYY-MM-DD>/<id>/` next to a meta.json describing it.
// Runs that never answered a frame are not archived and return archived=false.
func ArchiveRun(dataDir string, meta RunArchiveMeta, now time.Time) (archiveDir string, archived bool, err error) {
	if meta.RunID == "" {
		return "", false, fmt.Errorf("empty run id")
	}
	if meta.Cycles <= 0 {
		return "", false, nil
	}
	files, err := persistlog.TraceFiles(filepath.Join(dataDir, "runs", meta.RunID))
	if err != nil {
		return "", false, err
	}
	if len(files) == 0 {
		return "", false, nil
	}

	archiveDir = filepath.Join(dataDir, "archives", now.UTC().Format("2006-01-02"), meta.RunID)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	meta.Files = meta.Files[:0]
	for _, src := range files {
		dst := filepath.Join(archiveDir, filepath.Base(src))
		n, sum, err := copyFile(src, dst)
		if err != nil {
			return "", false, fmt.Errorf("archive %s: %w", filepath.Base(src), err)
		}
		meta.Files = append(meta.Files, ArchivedFile{Name: filepath.Base(dst), Bytes: n, SHA256: sum})
	}
	meta.CreatedAt = now.UTC().Format(time.RFC3339Nano)

	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", false, err
	}
	return archiveDir, true, nil
}

// ReadMeta loads the meta.json of an archived run.
func ReadMeta(archiveDir string) (RunArchiveMeta, error) {
	var m RunArchiveMeta
	b, err := os.ReadFile(filepath.Join(archiveDir, "meta.json"))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("%s: %w", archiveDir, err)
	}
	return m, nil
}

func copyFile(src, dst string) (int64, string, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = out.Close() }()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		return 0, "", err
	}
	if err := out.Close(); err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
