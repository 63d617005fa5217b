package wal

import (
	"bufio"
	"log"
	"os"
	"strings"
	"time"

	"github.com/tablekv/tablekv/internal/storage"
)

// Engine implements the Log Engine: the periodic
// persist → replay → commit → truncate cycle of the durability pipeline,
// plus the standalone startup replay used before any worker is running.
//
// Commit reads the working log file's current bytes rather than an
// in-memory slice alone: when the Async Log Writer is attached, mutations
// never touch the facade's in-memory pending log (they go straight to the
// writer), so the only place both write-paths agree on "what is committed
// so far" is the working log file itself. This keeps Commit correct
// regardless of which of the two producers (Writer or in-memory fallback)
// put the records there.
type Engine struct {
	workingPath string
	archivePath string
	interval    time.Duration
}

// NewEngine returns a Log Engine writing to workingPath/archivePath and
// intended to run its cycle every interval.
func NewEngine(workingPath, archivePath string, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Engine{workingPath: workingPath, archivePath: archivePath, interval: interval}
}

// Interval returns the configured cycle interval.
func (e *Engine) Interval() time.Duration { return e.interval }

// Persist appends pending to the working log file. It is a no-op when
// pending is empty, which is exactly the case when the Async Log Writer
// owns logging exclusively (the facade never populates its in-memory
// fallback log in that mode).
func (e *Engine) Persist(pending []string) error {
	if len(pending) == 0 {
		return nil
	}
	f, err := os.OpenFile(e.workingPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return storage.ErrFileCreation(e.workingPath, err)
	}
	defer f.Close()
	for _, rec := range pending {
		if _, err := f.WriteString(rec + "\n"); err != nil {
			return storage.ErrFileCreation(e.workingPath, err)
		}
	}
	return nil
}

// Replay parses and re-applies each record in pending to cat. Malformed
// records and application errors are logged and skipped; replay never
// halts on a bad record.
func (e *Engine) Replay(cat *storage.Catalog, pending []string) {
	for _, line := range pending {
		applyLine(cat, line)
	}
}

// Commit reads the working log file, appends its lines to the archive log
// (creating it if necessary), flushes, and truncates the working log file
// to zero length by re-creating it.
func (e *Engine) Commit() error {
	lines, err := readLines(e.workingPath)
	if err != nil {
		return err
	}
	if len(lines) > 0 {
		af, err := os.OpenFile(e.archivePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return storage.ErrFileCreation(e.archivePath, err)
		}
		for _, l := range lines {
			if _, err := af.WriteString(l + "\n"); err != nil {
				af.Close()
				return storage.ErrFileCreation(e.archivePath, err)
			}
		}
		if err := af.Sync(); err != nil {
			af.Close()
			return storage.ErrFileCreation(e.archivePath, err)
		}
		if err := af.Close(); err != nil {
			return storage.ErrFileCreation(e.archivePath, err)
		}
	}

	wf, err := os.Create(e.workingPath)
	if err != nil {
		return storage.ErrFileCreation(e.workingPath, err)
	}
	return wf.Close()
}

// RunCycle executes persist, replay, and commit in sequence under the
// caller's lock, then clears *pending. It is the body of one Log Engine
// tick.
func (e *Engine) RunCycle(cat *storage.Catalog, pending *[]string) error {
	if err := e.Persist(*pending); err != nil {
		return err
	}
	e.Replay(cat, *pending)
	if err := e.Commit(); err != nil {
		return err
	}
	*pending = nil
	return nil
}

// ReadWorkingLog returns the non-blank lines currently in the log file at
// path, or nil if the file does not exist yet. Used by callers that want to
// inspect the durability trail without applying it.
func ReadWorkingLog(path string) ([]string, error) {
	return readLines(path)
}

// ReplayWorkingLog reads path line by line and applies every well-formed
// record to cat. It is used for the one-time startup replay, before any
// background worker is running; the archive log is never replayed at
// startup, only the working log.
func ReplayWorkingLog(path string, cat *storage.Catalog) error {
	lines, err := readLines(path)
	if err != nil {
		return err
	}
	for _, line := range lines {
		applyLine(cat, line)
	}
	return nil
}

func applyLine(cat *storage.Catalog, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	rec, err := ParseRecord(line)
	if err != nil {
		log.Printf("wal engine: skipping malformed record: %v", err)
		return
	}
	if err := Apply(cat, rec); err != nil {
		log.Printf("wal engine: skipping record (%s:%s): %v", rec.Table, rec.RowID, err)
	}
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, storage.ErrFileCreation(path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, storage.ErrFileCreation(path, err)
	}
	return lines, nil
}
