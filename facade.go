package tablekv

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tablekv/tablekv/internal/index"
	"github.com/tablekv/tablekv/internal/storage"
	"github.com/tablekv/tablekv/internal/wal"
)

// DB is the Database Facade: the single entry point composing the table
// store, the durability pipeline, and the acceleration layer behind one
// coarse lock. Every exported method except the Async Log Writer's own
// background worker takes mu before touching any shared state, so the
// catalog, the pending fallback log, and the live index/bloom pointers are
// never observed mid-mutation.
type DB struct {
	mu  sync.Mutex
	cfg *Config
	cat *storage.Catalog

	// pending accumulates textual log records when no Async Log Writer is
	// attached (cfg.DisableAsyncWriter). When a writer is attached, mutations
	// go straight to it and this slice stays empty.
	pending []string

	writer    *wal.Writer
	logEngine *wal.Engine
	idxEngine *index.Engine

	idx   *index.Index
	bloom *index.Bloom

	opsSinceSave int

	cron *cron.Cron

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// TableSnapshot is a point-in-time, caller-owned copy of a table's metadata
// and rows, safe to read after the facade lock has been released.
type TableSnapshot struct {
	Name        string
	Columns     []string
	ColumnTypes map[string]string
	Rows        map[string]storage.Row
}

// NewDB opens a database rooted at cfg.WorkingDir. A nil cfg is replaced
// with DefaultConfig(). NewDB replays the working log into a fresh catalog
// before anything else runs, loads any previously
// persisted index and Bloom filter, attaches the Async Log Writer unless
// disabled, and starts the Log Engine and Index & Bloom Engine background
// loops.
func NewDB(cfg *Config) (*DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	cat := storage.NewCatalog()
	if err := wal.ReplayWorkingLog(cfg.workingLogPath(), cat); err != nil {
		return nil, err
	}

	db := &DB{
		cfg:       cfg,
		cat:       cat,
		logEngine: wal.NewEngine(cfg.workingLogPath(), cfg.archiveLogPath(), cfg.LogEngineInterval),
		idxEngine: index.NewEngine(cfg.indexPath(), cfg.bloomPath(), cfg.IndexEngineInterval, cfg.BloomSize),
		stopCh:    make(chan struct{}),
	}

	if ix, err := index.LoadIndex(cfg.indexPath()); err == nil {
		db.idx = ix
	}
	if bf, err := index.LoadBloom(cfg.bloomPath()); err == nil {
		db.bloom = bf
	}

	if !cfg.DisableAsyncWriter {
		db.writer = wal.NewWriter(cfg.workingLogPath(), cfg.BatchInterval, cfg.BatchSize)
	}

	db.wg.Add(2)
	go db.runLogEngineLoop()
	go db.runIndexEngineLoop()

	if cfg.CompactionCron != "" {
		sched := cron.New(cron.WithSeconds())
		if _, err := sched.AddFunc(cfg.CompactionCron, db.runCompactionJob); err != nil {
			db.Close()
			return nil, fmt.Errorf("tablekv: invalid compaction_cron %q: %w", cfg.CompactionCron, err)
		}
		sched.Start()
		db.cron = sched
	}

	return db, nil
}

// logRecord routes a formatted record to the Async Log Writer if one is
// attached, or appends it to the in-memory fallback log otherwise. Callers
// must hold mu.
func (db *DB) logRecord(line string) {
	if db.writer != nil {
		db.writer.Enqueue(line)
		return
	}
	db.pending = append(db.pending, line)
}

// loadTableLocked returns the named table, loading it from its CSV
// snapshot if it is not currently resident. Callers must hold mu.
func (db *DB) loadTableLocked(name string) (*storage.Table, error) {
	if db.cat.HasTable(name) {
		return db.cat.GetTable(name)
	}
	t, err := storage.LoadTableCSV(db.cfg.snapshotPath(name), name)
	if err != nil {
		return nil, storage.ErrTableDoesNotExist(name)
	}
	db.cat.Put(t)
	return t, nil
}

// CreateTable installs a new empty table named name.
func (db *DB) CreateTable(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.cat.CreateTable(name); err != nil {
		return err
	}
	db.logRecord(wal.FormatCreateTable(name))
	return nil
}

// AddColumn declares an untyped column on table, loading it from its
// snapshot first if it is not resident.
func (db *DB) AddColumn(table, column string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.loadTableLocked(table)
	if err != nil {
		return err
	}
	t.AddColumn(column)
	db.logRecord(wal.FormatAddColumn(table, column))
	return nil
}

// AddColumnsWithTypes declares cols with the matching typeTags on table, all
// or nothing. The WAL only ever records the bare column names: per-column
// type tags live in the reserved datatypes row and are recovered from a CSV
// snapshot, not from log replay, so they do not survive a crash that occurs
// before the next save of this table.
func (db *DB) AddColumnsWithTypes(table string, cols, typeTags []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.loadTableLocked(table)
	if err != nil {
		return err
	}
	if err := t.AddColumnsWithTypes(cols, typeTags); err != nil {
		return err
	}
	for _, c := range cols {
		db.logRecord(wal.FormatAddColumn(table, c))
	}
	return nil
}

// InsertRow installs data under rowID in table.
func (db *DB) InsertRow(table, rowID string, data storage.Row) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.loadTableLocked(table)
	if err != nil {
		return err
	}
	if err := t.InsertRow(rowID, data); err != nil {
		return err
	}
	line, err := wal.FormatInsertRow(table, rowID, data)
	if err != nil {
		return err
	}
	db.logRecord(line)
	db.afterInsertLocked(table)
	return nil
}

// InsertRowTyped installs data under rowID in table, validating every
// referenced column against its declared type first.
func (db *DB) InsertRowTyped(table, rowID string, data storage.Row) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.loadTableLocked(table)
	if err != nil {
		return err
	}
	if err := t.InsertRowTyped(rowID, data); err != nil {
		return err
	}
	line, err := wal.FormatInsertRow(table, rowID, data)
	if err != nil {
		return err
	}
	db.logRecord(line)
	db.afterInsertLocked(table)
	return nil
}

// afterInsertLocked advances the global operation counter and, on reaching
// the save threshold, append-saves only the table just mutated (not every
// resident table) and resets the counter. Callers must hold mu.
func (db *DB) afterInsertLocked(table string) {
	db.opsSinceSave++
	if db.opsSinceSave < db.cfg.SaveThreshold {
		return
	}
	if t, err := db.cat.GetTable(table); err == nil {
		if _, err := storage.SaveTableAppend(t, db.cfg.snapshotPath(table)); err != nil {
			log.Printf("tablekv: append-save %q failed: %v", table, err)
		}
	}
	db.opsSinceSave = 0
}

// UpdateRowField sets column on the row at rowID in table to value.
func (db *DB) UpdateRowField(table, rowID, column, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.loadTableLocked(table)
	if err != nil {
		return err
	}
	if err := t.UpdateRowField(rowID, column, value); err != nil {
		return err
	}
	line, err := wal.FormatUpdateRow(table, rowID, column, value)
	if err != nil {
		return err
	}
	db.logRecord(line)
	return nil
}

// GetRow returns a copy of the row at rowID in table.
func (db *DB) GetRow(table, rowID string) (storage.Row, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.loadTableLocked(table)
	if err != nil {
		return nil, err
	}
	return t.GetRow(rowID)
}

// GetTable returns a caller-owned snapshot of table's columns and rows.
func (db *DB) GetTable(table string) (*TableSnapshot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.loadTableLocked(table)
	if err != nil {
		return nil, err
	}

	rows := make(map[string]storage.Row, len(t.Rows))
	for id, row := range t.Rows {
		if id == storage.DatatypesRowID {
			continue
		}
		rows[id] = row.Clone()
	}
	types := make(map[string]string, len(t.ColumnTypes))
	for c, tag := range t.ColumnTypes {
		types[c] = tag
	}
	return &TableSnapshot{
		Name:        t.Name,
		Columns:     append([]string(nil), t.Columns...),
		ColumnTypes: types,
		Rows:        rows,
	}, nil
}

// FindRowsByValue returns the rows in table whose value at column equals
// value, stopping after the first match if first is true. Lookups on the
// index's tracked column consult the inverted index first; a miss there
// falls back to a full scan, since the index is only rebuilt periodically
// and must never produce a false negative. Scans on the Bloom filter's
// tracked column short-circuit to an empty result when the filter reports
// the value definitely absent.
func (db *DB) FindRowsByValue(table, column, value string, first bool) (map[string]storage.Row, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.loadTableLocked(table)
	if err != nil {
		return nil, err
	}
	if column == index.IndexedColumn && db.idx != nil {
		if out := db.findViaIndexLocked(t, value, first); out != nil {
			return out, nil
		}
	}
	if column == index.BloomColumn && db.bloom != nil && !db.bloom.MayContain(value) {
		return map[string]storage.Row{}, nil
	}
	return t.FindByValue(column, value, first), nil
}

func (db *DB) findViaIndexLocked(t *storage.Table, value string, first bool) map[string]storage.Row {
	ids := db.idx.Lookup(t, value)
	if len(ids) == 0 {
		return nil
	}
	out := make(map[string]storage.Row, len(ids))
	for _, id := range ids {
		row, err := t.GetRow(id)
		if err != nil {
			continue
		}
		out[id] = row
		if first {
			break
		}
	}
	return out
}

// MayContainEmail reports whether value might be present as some row's
// email column, consulting the Bloom filter. A true result does not
// guarantee presence; a false result means no row carried value when the
// filter was last built or loaded, and rows inserted since then are not
// reflected until the next rebuild. When no filter has been built in this
// process or loaded from disk by NewDB, this conservatively returns true.
func (db *DB) MayContainEmail(value string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.bloom == nil {
		return true
	}
	return db.bloom.MayContain(value)
}

// SearchRowsByPredicate evaluates a "column operator value" predicate
// against every row in table.
func (db *DB) SearchRowsByPredicate(table, expr string) (map[string]storage.Row, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.loadTableLocked(table)
	if err != nil {
		return nil, err
	}
	return t.SearchByPredicate(expr), nil
}

func (db *DB) saveTableLocked(table string) error {
	t, err := db.loadTableLocked(table)
	if err != nil {
		return err
	}
	return storage.SaveTableFull(t, db.cfg.snapshotPath(table))
}

// SaveTable fully rewrites table's CSV snapshot from its current in-memory
// state.
func (db *DB) SaveTable(table string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.saveTableLocked(table)
}

// CompactTable collapses table's snapshot back into a single canonical
// full-save, discarding whatever incremental append history preceded it.
func (db *DB) CompactTable(table string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.saveTableLocked(table)
}

// LoadWAL returns the records currently sitting in the working log file,
// for inspection. It does not apply them.
func (db *DB) LoadWAL() ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return wal.ReadWorkingLog(db.cfg.workingLogPath())
}

// PersistWAL appends the in-memory fallback log to the working log file and
// clears it. It is a no-op when an Async Log Writer is attached, since that
// writer owns persistence of every record itself.
func (db *DB) PersistWAL() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.logEngine.Persist(db.pending); err != nil {
		return err
	}
	db.pending = nil
	return nil
}

// CommitWAL appends the working log file's contents to the archive log and
// truncates the working log.
func (db *DB) CommitWAL() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.logEngine.Commit()
}

// ClearWAL discards the in-memory fallback log and truncates the working
// log file without archiving it. Intended for deliberately abandoning
// whatever has not yet been committed.
func (db *DB) ClearWAL() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.pending = nil
	f, err := os.Create(db.cfg.workingLogPath())
	if err != nil {
		return storage.ErrFileCreation(db.cfg.workingLogPath(), err)
	}
	return f.Close()
}

// ReplayWAL re-applies the working log file's contents to the live catalog.
// Every record type applies idempotently, so replaying records that were
// already reflected in memory is harmless.
func (db *DB) ReplayWAL() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return wal.ReplayWorkingLog(db.cfg.workingLogPath(), db.cat)
}

// FlushWAL forces one full persist → replay → commit cycle immediately,
// rather than waiting for the Log Engine's next tick.
func (db *DB) FlushWAL() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.logEngine.RunCycle(db.cat, &db.pending)
}

// BuildIndexes rebuilds and persists the inverted index from the current
// catalog and swaps it into the live facade state.
func (db *DB) BuildIndexes() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	ix := index.BuildIndex(db.cat)
	if err := ix.Save(db.cfg.indexPath()); err != nil {
		return err
	}
	db.idx = ix
	return nil
}

// BuildBloomFilter rebuilds and persists the Bloom filter from the current
// catalog and swaps it into the live facade state.
func (db *DB) BuildBloomFilter() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	bf := index.BuildBloom(db.cat, db.cfg.BloomSize)
	if err := bf.Save(db.cfg.bloomPath()); err != nil {
		return err
	}
	db.bloom = bf
	return nil
}

func (db *DB) runLogEngineLoop() {
	defer db.wg.Done()
	ticker := time.NewTicker(db.logEngine.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-db.stopCh:
			return
		case <-ticker.C:
			db.safeLogCycle()
		}
	}
}

// safeLogCycle recovers from a panic in a single cycle rather than letting
// it take down the worker permanently: Go's sync.Mutex has no poisoning
// concept to model the source's distinction between a recoverable and a
// fatal background failure, so every cycle gets the same recover-and-log
// treatment.
func (db *DB) safeLogCycle() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("tablekv: log engine cycle recovered from panic: %v", r)
		}
	}()
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.logEngine.RunCycle(db.cat, &db.pending); err != nil {
		log.Printf("tablekv: log engine cycle failed: %v", err)
	}
}

func (db *DB) runIndexEngineLoop() {
	defer db.wg.Done()
	ticker := time.NewTicker(db.idxEngine.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-db.stopCh:
			return
		case <-ticker.C:
			db.safeIndexCycle()
		}
	}
}

func (db *DB) safeIndexCycle() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("tablekv: index engine cycle recovered from panic: %v", r)
		}
	}()
	db.mu.Lock()
	defer db.mu.Unlock()
	ix, bf, err := db.idxEngine.Rebuild(db.cat)
	if err != nil {
		log.Printf("tablekv: index engine cycle failed: %v", err)
		return
	}
	db.idx = ix
	db.bloom = bf
}

func (db *DB) runCompactionJob() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("tablekv: compaction job recovered from panic: %v", r)
		}
	}()
	db.mu.Lock()
	defer db.mu.Unlock()

	names := db.cat.TableNames()
	sort.Strings(names)
	for _, name := range names {
		if err := db.saveTableLocked(name); err != nil {
			log.Printf("tablekv: compaction of %q failed: %v", name, err)
		}
	}
}

// Close stops the background workers, the optional compaction scheduler,
// and the Async Log Writer, then runs one final Log Engine cycle so
// whatever the writer just flushed gets committed before returning.
func (db *DB) Close() error {
	var err error
	db.closeOnce.Do(func() {
		close(db.stopCh)
		db.wg.Wait()

		if db.cron != nil {
			ctx := db.cron.Stop()
			<-ctx.Done()
		}

		if db.writer != nil {
			if werr := db.writer.Close(); werr != nil {
				err = werr
				return
			}
		}

		db.mu.Lock()
		defer db.mu.Unlock()
		err = db.logEngine.RunCycle(db.cat, &db.pending)
	})
	return err
}
