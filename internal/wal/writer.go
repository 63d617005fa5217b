package wal

import (
	"log"
	"os"
	"time"

	"github.com/google/uuid"
)

// queueCapacity sizes the Writer's internal channel generously enough that
// Enqueue's fast path never blocks under normal load; the slow-path
// goroutine below is the actual non-blocking guarantee.
const queueCapacity = 4096

// Writer is the Async Log Writer: a single-consumer worker that batches
// textual records to the working log file, flushing whenever the batch
// interval elapses or the batch reaches batchSize records.
type Writer struct {
	path      string
	interval  time.Duration
	batchSize int
	records   chan string
	done      chan struct{}
}

// NewWriter starts a Writer appending to path. The background worker runs
// until Close is called.
func NewWriter(path string, interval time.Duration, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = 10
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	w := &Writer{
		path:      path,
		interval:  interval,
		batchSize: batchSize,
		records:   make(chan string, queueCapacity),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue submits a record for batched writing. It never blocks the caller:
// if the internal channel is momentarily full, the send is handed off to a
// short-lived goroutine so producers are never stalled by the writer.
func (w *Writer) Enqueue(record string) {
	select {
	case w.records <- record:
	default:
		go func() { w.records <- record }()
	}
}

// Close stops accepting new records, flushes any buffered batch, and waits
// for the worker to exit.
func (w *Writer) Close() error {
	close(w.records)
	<-w.done
	return nil
}

func (w *Writer) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.done)

	var batch []string
	for {
		select {
		case rec, ok := <-w.records:
			if !ok {
				if len(batch) > 0 {
					w.flush(batch)
				}
				return
			}
			batch = append(batch, rec)
			if len(batch) >= w.batchSize {
				if w.flush(batch) {
					batch = nil
				}
			}
		case <-ticker.C:
			if len(batch) > 0 {
				if w.flush(batch) {
					batch = nil
				}
			}
		}
	}
}

// flush appends batch to the working log file and reports whether the batch
// was consumed. A momentary inability to open the file is survived: the
// attempt is logged with a correlation id and flush returns false, leaving
// the records buffered for the next attempt. A write error after the file
// was opened still consumes the batch, since part of it may already be on
// disk and retrying would duplicate records.
func (w *Writer) flush(batch []string) bool {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("wal writer: flush attempt=%s retained %d records: open %s: %v", uuid.NewString(), len(batch), w.path, err)
		return false
	}
	defer f.Close()

	for _, rec := range batch {
		if _, err := f.WriteString(rec + "\n"); err != nil {
			log.Printf("wal writer: flush attempt=%s write failed: %v", uuid.NewString(), err)
			return true
		}
	}
	return true
}
