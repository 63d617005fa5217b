package storage

import "testing"

func TestCreateTableDuplicate(t *testing.T) {
	cat := NewCatalog()
	if err := cat.CreateTable("users"); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	err := cat.CreateTable("users")
	if !ErrKind(err, KindTableAlreadyExists) {
		t.Fatalf("expected KindTableAlreadyExists, got %v", err)
	}
}

func TestGetTableMissing(t *testing.T) {
	cat := NewCatalog()
	_, err := cat.GetTable("missing")
	if !ErrKind(err, KindTableDoesNotExist) {
		t.Fatalf("expected KindTableDoesNotExist, got %v", err)
	}
}

func TestPutOverwrites(t *testing.T) {
	cat := NewCatalog()
	if err := cat.CreateTable("users"); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	replacement := NewTable("users")
	replacement.AddColumn("email")
	cat.Put(replacement)

	got, err := cat.GetTable("users")
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	if !got.HasColumn("email") {
		t.Fatalf("expected Put to overwrite the table, got %+v", got)
	}
}
