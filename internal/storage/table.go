package storage

import (
	"sort"

	"golang.org/x/exp/maps"
)

// DatatypesRowID is the reserved row id that carries a table's per-column
// type tags. It is never returned by ordinary queries and never counted as
// user data.
const DatatypesRowID = "datatypes"

// Row is a mapping from column name to its string value.
type Row map[string]string

// Clone returns an independent copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an in-memory tabular collection: an ordered column list, a
// row-id-keyed set of rows, and a per-column declared type. Every key used
// in any Row must also appear in Columns before it is returned to a caller,
// but insert paths do not enforce this eagerly (see InsertRow).
type Table struct {
	Name          string
	Columns       []string
	Rows          map[string]Row
	ColumnTypes   map[string]string
	savedRowCount int // append-save watermark, excludes the datatypes row
}

// NewTable creates an empty table named name.
func NewTable(name string) *Table {
	return &Table{
		Name:        name,
		Columns:     nil,
		Rows:        make(map[string]Row),
		ColumnTypes: make(map[string]string),
	}
}

// HasColumn reports whether col is already declared on the table.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// AddColumn appends col to the table's column list. It is a no-op if col is
// already present. Existing rows are not back-filled; readers must treat a
// missing key as an empty string.
func (t *Table) AddColumn(col string) {
	if t.HasColumn(col) {
		return
	}
	t.Columns = append(t.Columns, col)
}

// DeclareColumnType records typeTag for col, adding the column if it is not
// already present, and writes typeTag into the reserved datatypes row.
func (t *Table) DeclareColumnType(col, typeTag string) {
	t.AddColumn(col)
	t.ColumnTypes[col] = typeTag
	dt, ok := t.Rows[DatatypesRowID]
	if !ok {
		dt = make(Row)
	}
	dt[col] = typeTag
	t.Rows[DatatypesRowID] = dt
}

// ColumnType returns the declared type tag for col, if any.
func (t *Table) ColumnType(col string) (string, bool) {
	tag, ok := t.ColumnTypes[col]
	return tag, ok
}

// InsertRow installs data under id if id is not already present. Unknown
// keys in data are stored as given but do not extend Columns (callers
// wanting that must call AddColumn explicitly, or use UpdateRowField which
// adds columns implicitly).
func (t *Table) InsertRow(id string, data Row) error {
	if _, exists := t.Rows[id]; exists {
		return ErrRowAlreadyExists(t.Name, id)
	}
	t.Rows[id] = data.Clone()
	return nil
}

// InsertRowTyped validates every (col, value) pair in data against the
// column's declared type before installing the row. Every referenced column
// must already have a declared type, or the call fails with
// KindDataTypeError. A pre-existing id fails with KindRowAlreadyExists.
func (t *Table) InsertRowTyped(id string, data Row) error {
	if _, exists := t.Rows[id]; exists {
		return ErrRowAlreadyExists(t.Name, id)
	}
	for col, val := range data {
		tag, ok := t.ColumnType(col)
		if !ok {
			return ErrDataType(t.Name, col, val)
		}
		if err := CheckValue(t.Name, col, val, tag); err != nil {
			return err
		}
	}
	return t.InsertRow(id, data)
}

// AddColumnsWithTypes declares cols with the matching typeTags, validating
// every tag before mutating the table. This closes the partial-effect
// hazard where columns could be added before an invalid tag was discovered.
func (t *Table) AddColumnsWithTypes(cols, typeTags []string) error {
	if len(cols) != len(typeTags) {
		return ErrDataType(t.Name, "", "")
	}
	for _, tag := range typeTags {
		if !ValidTypeTag(tag) {
			return ErrInvalidDataType(tag)
		}
	}
	for i, col := range cols {
		t.DeclareColumnType(col, typeTags[i])
	}
	return nil
}

// GetRow returns a copy of the row at id, restricted to the table's current
// columns. The reserved datatypes row is never returned through this path.
func (t *Table) GetRow(id string) (Row, error) {
	if id == DatatypesRowID {
		return nil, ErrRowDoesNotExist(t.Name, id)
	}
	row, ok := t.Rows[id]
	if !ok {
		return nil, ErrRowDoesNotExist(t.Name, id)
	}
	out := make(Row, len(t.Columns))
	for _, c := range t.Columns {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out, nil
}

// UpdateRowField sets col on the row at id to value. If col is not yet a
// declared column it is added implicitly. The row must already exist.
func (t *Table) UpdateRowField(id, col, value string) error {
	row, ok := t.Rows[id]
	if !ok {
		return ErrRowDoesNotExist(t.Name, id)
	}
	t.AddColumn(col)
	row[col] = value
	t.Rows[id] = row
	return nil
}

// FindByValue returns the row ids (and a copy of their rows, restricted to
// Columns) whose value at col equals value. Rows that do not carry col at
// all are never candidates. If first is true, the scan stops after the
// first match. The reserved datatypes row is always excluded.
func (t *Table) FindByValue(col, value string, first bool) map[string]Row {
	out := make(map[string]Row)
	ids := maps.Keys(t.Rows)
	sort.Strings(ids)
	for _, id := range ids {
		if id == DatatypesRowID {
			continue
		}
		v, ok := t.Rows[id][col]
		if !ok || v != value {
			continue
		}
		projected, err := t.GetRow(id)
		if err != nil {
			continue
		}
		out[id] = projected
		if first {
			return out
		}
	}
	return out
}

// SortedRowIDs returns the table's user row ids (excluding the reserved
// datatypes row) in lexicographic order.
func (t *Table) SortedRowIDs() []string {
	ids := make([]string, 0, len(t.Rows))
	for id := range t.Rows {
		if id == DatatypesRowID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SortedColumns returns a lexicographically sorted copy of Columns, used by
// the CSV snapshot format which orders columns independent of declaration
// order.
func (t *Table) SortedColumns() []string {
	out := append([]string(nil), t.Columns...)
	sort.Strings(out)
	return out
}

// SavedRowCount returns the append-save watermark: the number of user rows
// already flushed by a prior append or full save.
func (t *Table) SavedRowCount() int { return t.savedRowCount }

// SetSavedRowCount overwrites the append-save watermark, used after a full
// save (which flushes every row) and after an append save (which advances
// it by the number of newly written rows).
func (t *Table) SetSavedRowCount(n int) { t.savedRowCount = n }
