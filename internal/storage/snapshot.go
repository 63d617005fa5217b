package storage

import (
	"encoding/csv"
	"os"
)

// LoadTableCSV reads a CSV snapshot file and returns the table it
// describes, named tableName. Type tags are not reconstructed unless a
// datatypes row is present in the file.
func LoadTableCSV(path, tableName string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrFileCreation(path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, ErrFileCreation(path, err)
	}

	t := NewTable(tableName)
	var cols []string
	if len(header) > 1 {
		cols = header[1:]
	}
	for _, c := range cols {
		t.AddColumn(c)
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, ErrFileCreation(path, err)
	}

	loaded := 0
	for _, rec := range records {
		if len(rec) == 0 {
			continue
		}
		id := rec[0]
		row := make(Row, len(cols))
		for i, c := range cols {
			if i+1 < len(rec) {
				row[c] = rec[i+1]
			} else {
				row[c] = ""
			}
		}
		if id == DatatypesRowID {
			t.Rows[DatatypesRowID] = row
			for c, tag := range row {
				if tag != "" {
					t.ColumnTypes[c] = tag
				}
			}
			continue
		}
		t.Rows[id] = row
		loaded++
	}
	t.SetSavedRowCount(loaded)
	return t, nil
}

// SaveTableFull truncates path and rewrites it from scratch: header, the
// datatypes row (if any), then every user row in lexicographic id order.
func SaveTableFull(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return ErrFileCreation(path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	cols := t.SortedColumns()

	header := make([]string, 0, len(cols)+1)
	header = append(header, "row_id")
	header = append(header, cols...)
	if err := w.Write(header); err != nil {
		return ErrFileCreation(path, err)
	}

	if dt, ok := t.Rows[DatatypesRowID]; ok {
		if err := w.Write(csvRecord(DatatypesRowID, cols, dt)); err != nil {
			return ErrFileCreation(path, err)
		}
	}

	ids := t.SortedRowIDs()
	for _, id := range ids {
		if err := w.Write(csvRecord(id, cols, t.Rows[id])); err != nil {
			return ErrFileCreation(path, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return ErrFileCreation(path, err)
	}
	t.SetSavedRowCount(len(ids))
	return nil
}

// SaveTableAppend writes only the user rows beyond the table's current
// append-save watermark. If path does not yet exist, this falls back to a
// full save (there being no header to append after), since the append mode
// never writes a header of its own. It returns the number of rows written.
func SaveTableAppend(t *Table, path string) (int, error) {
	ids := t.SortedRowIDs()
	watermark := t.SavedRowCount()
	if watermark < 0 {
		watermark = 0
	}
	if watermark > len(ids) {
		watermark = len(ids)
	}
	pending := ids[watermark:]

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return 0, ErrFileCreation(path, err)
		}
		if err := SaveTableFull(t, path); err != nil {
			return 0, err
		}
		return len(ids), nil
	}

	if len(pending) == 0 {
		return 0, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, ErrFileCreation(path, err)
	}
	defer f.Close()

	cols := t.SortedColumns()
	w := csv.NewWriter(f)
	for _, id := range pending {
		if err := w.Write(csvRecord(id, cols, t.Rows[id])); err != nil {
			return 0, ErrFileCreation(path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, ErrFileCreation(path, err)
	}

	t.SetSavedRowCount(watermark + len(pending))
	return len(pending), nil
}

func csvRecord(id string, cols []string, row Row) []string {
	rec := make([]string, 0, len(cols)+1)
	rec = append(rec, id)
	for _, c := range cols {
		rec = append(rec, row[c])
	}
	return rec
}
