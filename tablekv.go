// Package tablekv provides an embedded, single-node tabular key/value store
// for Go applications.
//
// A DB keeps its tables in memory and makes them crash-consistent through:
//   - a textual write-ahead log, batched to disk by an asynchronous writer
//   - a periodic log engine that replays, archives, and truncates the log
//   - incremental CSV snapshots per table, with full-save compaction
//   - an inverted index and a Bloom filter, rebuilt on an interval, that
//     accelerate equality lookups on the "name" and "email" columns
//
// # Basic Usage
//
// Open a database, create a table, and insert and query rows:
//
//	db, err := tablekv.NewDB(nil) // nil selects DefaultConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	db.CreateTable("users")
//	db.AddColumn("users", "name")
//	db.InsertRow("users", "1", tablekv.Row{"name": "alice"})
//
//	rows, _ := db.FindRowsByValue("users", "name", "alice", false)
//
// Every mutation hands a record to the log before the call returns; the
// Async Log Writer appends it to the working log within one batch interval.
// On restart, NewDB replays the working log, which holds the records written
// since the last Log Engine commit. Records already moved to the archive log
// are not replayed, and records still queued in the writer when the process
// dies are lost; a table that is not in memory after replay is loaded from
// its CSV snapshot on first use.
package tablekv

import "github.com/tablekv/tablekv/internal/storage"

// Row maps column names to string values.
type Row = storage.Row

// Error is the error type returned by every DB operation that can fail on
// table or row state; branch on its Kind rather than on message text.
type Error = storage.Error

// ErrorKind identifies the category of an Error.
type ErrorKind = storage.Kind

const (
	KindTableAlreadyExists = storage.KindTableAlreadyExists // create of an existing table
	KindTableDoesNotExist  = storage.KindTableDoesNotExist  // lookup of an unknown table
	KindRowDoesNotExist    = storage.KindRowDoesNotExist    // lookup of an unknown row id
	KindRowNotFound        = storage.KindRowNotFound        // not returned by any DB operation; empty searches return an empty result
	KindRowAlreadyExists   = storage.KindRowAlreadyExists   // insert over an existing row id
	KindFileCreationError  = storage.KindFileCreationError  // snapshot or log file I/O failure
	KindDataTypeError      = storage.KindDataTypeError      // value rejected by its column's type
	KindInvalidDataType    = storage.KindInvalidDataType    // unrecognized type tag
)

// Recognized column type tags for AddColumnsWithTypes and InsertRowTyped.
const (
	TypeInt    = storage.TypeInt
	TypeFloat  = storage.TypeFloat
	TypeString = storage.TypeString
	TypeBool   = storage.TypeBool
)

// ErrKind reports whether err (or anything it wraps) is an Error of kind k.
func ErrKind(err error, k ErrorKind) bool {
	return storage.ErrKind(err, k)
}
