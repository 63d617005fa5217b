package wal

import (
	"testing"

	"github.com/tablekv/tablekv/internal/storage"
)

func TestFormatAndParseCreateTable(t *testing.T) {
	line := FormatCreateTable("users")
	rec, err := ParseRecord(line)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if rec.Type != RecordCreateTable || rec.Table != "users" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestFormatAndParseAddColumn(t *testing.T) {
	line := FormatAddColumn("users", "email")
	rec, err := ParseRecord(line)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if rec.Type != RecordAddColumn || rec.Table != "users" || rec.Column != "email" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestFormatAndParseInsertRowRoundTrip(t *testing.T) {
	data := storage.Row{"name": "alice", "note": "has: a colon, and a comma"}
	line, err := FormatInsertRow("users", "1", data)
	if err != nil {
		t.Fatalf("FormatInsertRow: %v", err)
	}
	rec, err := ParseRecord(line)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if rec.Type != RecordInsertRow || rec.Table != "users" || rec.RowID != "1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Data["name"] != "alice" || rec.Data["note"] != "has: a colon, and a comma" {
		t.Fatalf("unexpected payload: %+v", rec.Data)
	}
}

func TestFormatAndParseUpdateRowRoundTrip(t *testing.T) {
	line, err := FormatUpdateRow("users", "1", "note", "value: with colons: inside")
	if err != nil {
		t.Fatalf("FormatUpdateRow: %v", err)
	}
	rec, err := ParseRecord(line)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if rec.Type != RecordUpdateRow || rec.Column != "note" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Value != "value: with colons: inside" {
		t.Fatalf("unexpected value: %q", rec.Value)
	}
}

func TestParseRecordMalformed(t *testing.T) {
	cases := []string{
		"",
		"no-colon-here",
		"create_table:",
		"add_column:users",
		"insert_row:users:1",
		"bogus_op:a:b",
	}
	for _, line := range cases {
		if _, err := ParseRecord(line); err == nil {
			t.Fatalf("expected error for %q", line)
		}
	}
}

func TestApplyInsertRowIsIdempotent(t *testing.T) {
	cat := storage.NewCatalog()
	if err := cat.CreateTable("users"); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	rec := &Record{Type: RecordInsertRow, Table: "users", RowID: "1", Data: storage.Row{"name": "alice"}}

	if err := Apply(cat, rec); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if err := Apply(cat, rec); err != nil {
		t.Fatalf("second Apply (replay) should be a no-op, got: %v", err)
	}

	tbl, err := cat.GetTable("users")
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	if len(tbl.Rows) != 1 {
		t.Fatalf("expected exactly 1 row after double-apply, got %d", len(tbl.Rows))
	}
}

func TestApplyAddColumnMissingTable(t *testing.T) {
	cat := storage.NewCatalog()
	rec := &Record{Type: RecordAddColumn, Table: "missing", Column: "email"}
	err := Apply(cat, rec)
	if !storage.ErrKind(err, storage.KindTableDoesNotExist) {
		t.Fatalf("expected KindTableDoesNotExist, got %v", err)
	}
}

func TestApplyCreateTableIdempotent(t *testing.T) {
	cat := storage.NewCatalog()
	rec := &Record{Type: RecordCreateTable, Table: "users"}
	if err := Apply(cat, rec); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if err := Apply(cat, rec); err != nil {
		t.Fatalf("second Apply (replay) should be a no-op, got: %v", err)
	}
}
