// Package wal implements the durability pipeline: the textual log record
// grammar, the Async Log Writer that batches records to the working log
// file, and the Log Engine that runs the periodic
// persist → replay → commit → truncate cycle.
//
// What: one line per mutation, parsed and replayed against a
// github.com/tablekv/tablekv/internal/storage.Catalog.
// How: records are colon-separated with a bounded field count per record
// type (2/3/4/5 parts, final field is the remainder), so that colons
// embedded in a JSON payload never confuse the parser.
// Why: textual records are trivially debuggable (grep/tail the log file)
// at the cost of a small, fixed parsing contract.
package wal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tablekv/tablekv/internal/storage"
)

// RecordType discriminates the four mutation kinds this log can carry.
type RecordType int

const (
	RecordCreateTable RecordType = iota
	RecordAddColumn
	RecordInsertRow
	RecordUpdateRow
)

// Record is a single parsed log entry.
type Record struct {
	Type   RecordType
	Table  string
	RowID  string
	Column string
	Data   storage.Row // populated for RecordInsertRow
	Value  string      // populated for RecordUpdateRow
}

const (
	opCreateTable = "create_table"
	opAddColumn   = "add_column"
	opInsertRow   = "insert_row"
	opUpdateRow   = "update_row"
)

// FormatCreateTable renders a create_table record line (without trailing
// newline).
func FormatCreateTable(table string) string {
	return fmt.Sprintf("%s:%s", opCreateTable, table)
}

// FormatAddColumn renders an add_column record line.
func FormatAddColumn(table, column string) string {
	return fmt.Sprintf("%s:%s:%s", opAddColumn, table, column)
}

// FormatInsertRow renders an insert_row record line, JSON-encoding data.
func FormatInsertRow(table, rowID string, data storage.Row) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode insert_row payload: %w", err)
	}
	return fmt.Sprintf("%s:%s:%s:%s", opInsertRow, table, rowID, payload), nil
}

// FormatUpdateRow renders an update_row record line, JSON-encoding the new
// value as a JSON string.
func FormatUpdateRow(table, rowID, column, value string) (string, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode update_row payload: %w", err)
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s", opUpdateRow, table, rowID, column, payload), nil
}

// ParseRecord parses a single log line into a Record. Each record type
// splits with a bounded field count so that colons inside the JSON tail
// never get mistaken for structural separators.
func ParseRecord(line string) (*Record, error) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return nil, fmt.Errorf("malformed log record: %q", line)
	}
	prefix := line[:idx]

	switch prefix {
	case opCreateTable:
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			return nil, fmt.Errorf("malformed create_table record: %q", line)
		}
		return &Record{Type: RecordCreateTable, Table: parts[1]}, nil

	case opAddColumn:
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed add_column record: %q", line)
		}
		return &Record{Type: RecordAddColumn, Table: parts[1], Column: parts[2]}, nil

	case opInsertRow:
		parts := strings.SplitN(line, ":", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("malformed insert_row record: %q", line)
		}
		var data storage.Row
		if err := json.Unmarshal([]byte(parts[3]), &data); err != nil {
			return nil, fmt.Errorf("malformed insert_row payload: %w", err)
		}
		return &Record{Type: RecordInsertRow, Table: parts[1], RowID: parts[2], Data: data}, nil

	case opUpdateRow:
		parts := strings.SplitN(line, ":", 5)
		if len(parts) != 5 {
			return nil, fmt.Errorf("malformed update_row record: %q", line)
		}
		var val string
		if err := json.Unmarshal([]byte(parts[4]), &val); err != nil {
			return nil, fmt.Errorf("malformed update_row payload: %w", err)
		}
		return &Record{Type: RecordUpdateRow, Table: parts[1], RowID: parts[2], Column: parts[3], Value: val}, nil

	default:
		return nil, fmt.Errorf("unknown log record type: %q", prefix)
	}
}

// Apply re-applies a single parsed record to cat, following the replay
// rules of the containing module's Log Engine: create_table and add_column
// are treated as idempotent; insert_row only installs the row if its id is
// absent (guarding against double-apply from a just-executed call);
// update_row requires the row to already exist.
func Apply(cat *storage.Catalog, rec *Record) error {
	switch rec.Type {
	case RecordCreateTable:
		if cat.HasTable(rec.Table) {
			return nil
		}
		return cat.CreateTable(rec.Table)

	case RecordAddColumn:
		t, err := cat.GetTable(rec.Table)
		if err != nil {
			return err
		}
		t.AddColumn(rec.Column)
		return nil

	case RecordInsertRow:
		t, err := cat.GetTable(rec.Table)
		if err != nil {
			return err
		}
		if _, exists := t.Rows[rec.RowID]; exists {
			return nil // already applied; guard against double-apply
		}
		return t.InsertRow(rec.RowID, rec.Data)

	case RecordUpdateRow:
		t, err := cat.GetTable(rec.Table)
		if err != nil {
			return err
		}
		return t.UpdateRowField(rec.RowID, rec.Column, rec.Value)

	default:
		return fmt.Errorf("unknown record type %v", rec.Type)
	}
}
