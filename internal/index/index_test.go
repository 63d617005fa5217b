package index

import (
	"path/filepath"
	"testing"

	"github.com/tablekv/tablekv/internal/storage"
)

func buildCatalog(t *testing.T) *storage.Catalog {
	t.Helper()
	cat := storage.NewCatalog()
	if err := cat.CreateTable("users"); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := cat.CreateTable("accounts"); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	users := cat.Tables["users"]
	users.AddColumn("name")
	users.AddColumn("email")
	if err := users.InsertRow("1", storage.Row{"name": "alice", "email": "alice@example.com"}); err != nil {
		t.Fatalf("InsertRow: %v", err)
	}
	accounts := cat.Tables["accounts"]
	accounts.AddColumn("name")
	if err := accounts.InsertRow("9", storage.Row{"name": "alice"}); err != nil {
		t.Fatalf("InsertRow: %v", err)
	}
	return cat
}

func TestBuildIndexFindsRowsAcrossTables(t *testing.T) {
	cat := buildCatalog(t)
	ix := BuildIndex(cat)
	if len(ix.Entries["alice"]) != 2 {
		t.Fatalf("expected the global index to hold alice from both tables, got %v", ix.Entries["alice"])
	}

	users := cat.Tables["users"]
	ids := ix.Lookup(users, "alice")
	if len(ids) != 1 || ids[0] != "1" {
		t.Fatalf("expected [1], got %v", ids)
	}
}

func TestLookupFiltersCrossTableBleed(t *testing.T) {
	cat := buildCatalog(t)
	ix := BuildIndex(cat)

	accounts := cat.Tables["accounts"]
	ids := ix.Lookup(accounts, "alice")
	if len(ids) != 1 || ids[0] != "9" {
		t.Fatalf("expected only accounts' own row 9, got %v", ids)
	}
}

func TestLookupExcludesDatatypesRow(t *testing.T) {
	cat := storage.NewCatalog()
	if err := cat.CreateTable("users"); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	users := cat.Tables["users"]
	users.DeclareColumnType("name", storage.TypeString)
	if err := users.InsertRowTyped("1", storage.Row{"name": "alice"}); err != nil {
		t.Fatalf("InsertRowTyped: %v", err)
	}

	ix := BuildIndex(cat)
	ids := ix.Lookup(users, "alice")
	for _, id := range ids {
		if id == storage.DatatypesRowID {
			t.Fatalf("datatypes row leaked into lookup results: %v", ids)
		}
	}
}

func TestBuildBloomTracksEmailColumn(t *testing.T) {
	cat := buildCatalog(t)
	bf := BuildBloom(cat, 1000)
	if !bf.MayContain("alice@example.com") {
		t.Fatalf("expected bloom filter to contain the inserted email")
	}
}

func TestIndexSaveLoadRoundTrip(t *testing.T) {
	cat := buildCatalog(t)
	ix := BuildIndex(cat)
	path := filepath.Join(t.TempDir(), "indexer.json")

	if err := ix.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadIndex(path)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if len(loaded.Entries["alice"]) != 2 {
		t.Fatalf("expected 2 entries for alice, got %v", loaded.Entries["alice"])
	}
}

func TestBloomSaveLoadRoundTrip(t *testing.T) {
	bf := NewBloom(1000)
	bf.Add("alice@example.com")
	path := filepath.Join(t.TempDir(), "bloom_filter.json")

	if err := bf.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadBloom(path)
	if err != nil {
		t.Fatalf("LoadBloom: %v", err)
	}
	if !loaded.MayContain("alice@example.com") {
		t.Fatalf("expected reloaded filter to still contain the value")
	}
}
