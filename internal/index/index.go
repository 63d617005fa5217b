// Package index implements the acceleration layer: a periodically rebuilt
// inverted index on each row's "name" column and a Bloom filter on each
// row's "email" column, both serialized to JSON.
//
// What: two read-side structures consulted by the facade's query path
// before falling back to a full table scan.
// How: both are rebuilt from scratch on every Index Engine cycle by
// iterating the full catalog; neither tracks incremental updates, so a
// rebuild always reflects a consistent (if possibly stale) snapshot.
// Why: a full-snapshot rebuild needs no bookkeeping for deletes or
// renames, which this data model does not have anyway (rows are never
// deleted, columns are never renamed).
package index

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/tablekv/tablekv/internal/storage"
)

const (
	// IndexedColumn is the only column the inverted index tracks.
	IndexedColumn = "name"
	// BloomColumn is the only column the Bloom filter tracks.
	BloomColumn = "email"
	// DefaultBloomSize is the Bloom filter bit-array size used when no
	// explicit size is configured.
	DefaultBloomSize = 1000
)

// Index is a global (cross-table) inverted mapping from a value of the
// indexed column to the row ids that carry it.
type Index struct {
	Entries map[string][]string
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{Entries: make(map[string][]string)}
}

// Add records that rowID carries value.
func (ix *Index) Add(value, rowID string) {
	ix.Entries[value] = append(ix.Entries[value], rowID)
}

// BuildIndex rebuilds the inverted index from every row in cat that has a
// "name" column.
func BuildIndex(cat *storage.Catalog) *Index {
	ix := NewIndex()
	names := cat.TableNames()
	sort.Strings(names)
	for _, tn := range names {
		t := cat.Tables[tn]
		for _, id := range t.SortedRowIDs() {
			if v, ok := t.Rows[id][IndexedColumn]; ok {
				ix.Add(v, id)
			}
		}
	}
	return ix
}

// BuildBloom rebuilds the Bloom filter from every row in cat that has an
// "email" column.
func BuildBloom(cat *storage.Catalog, size int) *Bloom {
	bf := NewBloom(size)
	for _, tn := range cat.TableNames() {
		t := cat.Tables[tn]
		for _, id := range t.SortedRowIDs() {
			if v, ok := t.Rows[id][BloomColumn]; ok {
				bf.Add(v)
			}
		}
	}
	return bf
}

// Lookup returns the row ids carrying value that are actually present in
// table, filtering out cross-table hits since the index itself is global:
// an id is kept only if table has a row under it whose indexed column
// still equals value.
func (ix *Index) Lookup(table *storage.Table, value string) []string {
	candidates, ok := ix.Entries[value]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if id == storage.DatatypesRowID {
			continue
		}
		if row, present := table.Rows[id]; present && row[IndexedColumn] == value {
			out = append(out, id)
		}
	}
	return out
}

type indexFile struct {
	Index map[string][]string `json:"index"`
}

// Save writes the index to path as JSON.
func (ix *Index) Save(path string) error {
	data, err := json.MarshalIndent(indexFile{Index: ix.Entries}, "", "  ")
	if err != nil {
		return storage.ErrFileCreation(path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return storage.ErrFileCreation(path, err)
	}
	return nil
}

// LoadIndex reads an index previously written by Save.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, storage.ErrFileCreation(path, err)
	}
	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, storage.ErrFileCreation(path, err)
	}
	if f.Index == nil {
		f.Index = make(map[string][]string)
	}
	return &Index{Entries: f.Index}, nil
}

// Save writes the Bloom filter to path as JSON.
func (b *Bloom) Save(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return storage.ErrFileCreation(path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return storage.ErrFileCreation(path, err)
	}
	return nil
}

// LoadBloom reads a Bloom filter previously written by Save.
func LoadBloom(path string) (*Bloom, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, storage.ErrFileCreation(path, err)
	}
	var b Bloom
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, storage.ErrFileCreation(path, err)
	}
	return &b, nil
}
