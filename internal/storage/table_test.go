package storage

import "testing"

func TestInsertAndGetRow(t *testing.T) {
	tbl := NewTable("users")
	tbl.AddColumn("name")
	tbl.AddColumn("age")

	if err := tbl.InsertRow("1", Row{"name": "alice", "age": "30"}); err != nil {
		t.Fatalf("InsertRow: %v", err)
	}

	row, err := tbl.GetRow("1")
	if err != nil {
		t.Fatalf("GetRow: %v", err)
	}
	if row["name"] != "alice" || row["age"] != "30" {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestInsertRowDuplicateID(t *testing.T) {
	tbl := NewTable("users")
	if err := tbl.InsertRow("1", Row{"name": "alice"}); err != nil {
		t.Fatalf("InsertRow: %v", err)
	}
	err := tbl.InsertRow("1", Row{"name": "bob"})
	if !ErrKind(err, KindRowAlreadyExists) {
		t.Fatalf("expected KindRowAlreadyExists, got %v", err)
	}
}

func TestGetRowMissing(t *testing.T) {
	tbl := NewTable("users")
	_, err := tbl.GetRow("missing")
	if !ErrKind(err, KindRowDoesNotExist) {
		t.Fatalf("expected KindRowDoesNotExist, got %v", err)
	}
}

func TestGetRowNeverReturnsDatatypesRow(t *testing.T) {
	tbl := NewTable("users")
	tbl.DeclareColumnType("age", TypeInt)
	_, err := tbl.GetRow(DatatypesRowID)
	if !ErrKind(err, KindRowDoesNotExist) {
		t.Fatalf("expected datatypes row to be hidden, got %v", err)
	}
}

func TestAddColumnIdempotent(t *testing.T) {
	tbl := NewTable("users")
	tbl.AddColumn("name")
	tbl.AddColumn("name")
	if len(tbl.Columns) != 1 {
		t.Fatalf("expected one column, got %v", tbl.Columns)
	}
}

func TestInsertRowTypedRejectsUndeclaredColumn(t *testing.T) {
	tbl := NewTable("users")
	err := tbl.InsertRowTyped("1", Row{"age": "30"})
	if !ErrKind(err, KindDataTypeError) {
		t.Fatalf("expected KindDataTypeError for undeclared column, got %v", err)
	}
}

func TestInsertRowTypedAcceptsValidValue(t *testing.T) {
	tbl := NewTable("users")
	tbl.DeclareColumnType("age", TypeInt)
	if err := tbl.InsertRowTyped("1", Row{"age": "30"}); err != nil {
		t.Fatalf("InsertRowTyped: %v", err)
	}
}

func TestInsertRowTypedRejectsInvalidValue(t *testing.T) {
	tbl := NewTable("users")
	tbl.DeclareColumnType("age", TypeInt)
	err := tbl.InsertRowTyped("1", Row{"age": "not-a-number"})
	if !ErrKind(err, KindDataTypeError) {
		t.Fatalf("expected KindDataTypeError for bad int, got %v", err)
	}
}

func TestInsertRowTypedDuplicateIDIsRowAlreadyExists(t *testing.T) {
	tbl := NewTable("users")
	tbl.DeclareColumnType("age", TypeInt)
	if err := tbl.InsertRowTyped("1", Row{"age": "30"}); err != nil {
		t.Fatalf("InsertRowTyped: %v", err)
	}
	err := tbl.InsertRowTyped("1", Row{"age": "31"})
	if !ErrKind(err, KindRowAlreadyExists) {
		t.Fatalf("expected KindRowAlreadyExists, got %v", err)
	}
}

func TestAddColumnsWithTypesAllOrNothing(t *testing.T) {
	tbl := NewTable("users")
	err := tbl.AddColumnsWithTypes([]string{"age", "active"}, []string{TypeInt, "not-a-type"})
	if !ErrKind(err, KindInvalidDataType) {
		t.Fatalf("expected KindInvalidDataType, got %v", err)
	}
	if tbl.HasColumn("age") || tbl.HasColumn("active") {
		t.Fatalf("expected no columns to be added on partial failure, got %v", tbl.Columns)
	}
}

func TestAddColumnsWithTypesMismatchedLength(t *testing.T) {
	tbl := NewTable("users")
	err := tbl.AddColumnsWithTypes([]string{"age"}, []string{TypeInt, TypeString})
	if !ErrKind(err, KindDataTypeError) {
		t.Fatalf("expected KindDataTypeError for length mismatch, got %v", err)
	}
}

func TestUpdateRowFieldAddsColumnImplicitly(t *testing.T) {
	tbl := NewTable("users")
	if err := tbl.InsertRow("1", Row{}); err != nil {
		t.Fatalf("InsertRow: %v", err)
	}
	if err := tbl.UpdateRowField("1", "nickname", "al"); err != nil {
		t.Fatalf("UpdateRowField: %v", err)
	}
	if !tbl.HasColumn("nickname") {
		t.Fatalf("expected UpdateRowField to add the column implicitly")
	}
	row, err := tbl.GetRow("1")
	if err != nil {
		t.Fatalf("GetRow: %v", err)
	}
	if row["nickname"] != "al" {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestUpdateRowFieldMissingRow(t *testing.T) {
	tbl := NewTable("users")
	err := tbl.UpdateRowField("1", "name", "al")
	if !ErrKind(err, KindRowDoesNotExist) {
		t.Fatalf("expected KindRowDoesNotExist, got %v", err)
	}
}

func TestFindByValue(t *testing.T) {
	tbl := NewTable("users")
	tbl.AddColumn("name")
	mustInsert(t, tbl, "2", Row{"name": "bob"})
	mustInsert(t, tbl, "1", Row{"name": "alice"})
	mustInsert(t, tbl, "3", Row{"name": "alice"})

	matches := tbl.FindByValue("name", "alice", false)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(matches), matches)
	}
	if _, ok := matches["1"]; !ok {
		t.Fatalf("expected row 1 in matches")
	}
	if _, ok := matches["3"]; !ok {
		t.Fatalf("expected row 3 in matches")
	}
}

func TestFindByValueSkipsRowsMissingColumn(t *testing.T) {
	tbl := NewTable("users")
	tbl.AddColumn("name")
	tbl.AddColumn("nickname")
	mustInsert(t, tbl, "1", Row{"name": "alice"})
	mustInsert(t, tbl, "2", Row{"name": "bob", "nickname": ""})

	matches := tbl.FindByValue("nickname", "", false)
	if len(matches) != 1 {
		t.Fatalf("expected only the row carrying the column, got %+v", matches)
	}
	if _, ok := matches["2"]; !ok {
		t.Fatalf("expected row 2 to match its empty nickname")
	}
}

func TestFindByValueFirstOnly(t *testing.T) {
	tbl := NewTable("users")
	tbl.AddColumn("name")
	mustInsert(t, tbl, "1", Row{"name": "alice"})
	mustInsert(t, tbl, "2", Row{"name": "alice"})

	matches := tbl.FindByValue("name", "alice", true)
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match with first=true, got %d", len(matches))
	}
}

func TestSortedRowIDsExcludesDatatypesRow(t *testing.T) {
	tbl := NewTable("users")
	tbl.DeclareColumnType("age", TypeInt)
	mustInsert(t, tbl, "2", Row{"age": "1"})
	mustInsert(t, tbl, "1", Row{"age": "2"})

	ids := tbl.SortedRowIDs()
	if len(ids) != 2 || ids[0] != "1" || ids[1] != "2" {
		t.Fatalf("unexpected sorted ids: %v", ids)
	}
}

func mustInsert(t *testing.T, tbl *Table, id string, data Row) {
	t.Helper()
	if err := tbl.InsertRow(id, data); err != nil {
		t.Fatalf("InsertRow(%s): %v", id, err)
	}
}
