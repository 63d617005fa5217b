package index

import (
	"time"

	"github.com/tablekv/tablekv/internal/storage"
)

// Engine implements the Index & Bloom Engine: the periodic rebuild-and-
// persist cycle for both acceleration structures.
type Engine struct {
	indexPath string
	bloomPath string
	bloomSize int
	interval  time.Duration
}

// NewEngine returns an Index & Bloom Engine persisting to indexPath and
// bloomPath, rebuilding every interval with a Bloom filter of bloomSize
// bits (0 selects DefaultBloomSize).
func NewEngine(indexPath, bloomPath string, interval time.Duration, bloomSize int) *Engine {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if bloomSize <= 0 {
		bloomSize = DefaultBloomSize
	}
	return &Engine{indexPath: indexPath, bloomPath: bloomPath, bloomSize: bloomSize, interval: interval}
}

// Interval returns the configured cycle interval.
func (e *Engine) Interval() time.Duration { return e.interval }

// Rebuild rebuilds both structures from cat and persists them to disk,
// returning the freshly built structures so the caller can swap them into
// the live facade state.
func (e *Engine) Rebuild(cat *storage.Catalog) (*Index, *Bloom, error) {
	ix := BuildIndex(cat)
	bf := BuildBloom(cat, e.bloomSize)
	if err := ix.Save(e.indexPath); err != nil {
		return nil, nil, err
	}
	if err := bf.Save(e.bloomPath); err != nil {
		return nil, nil, err
	}
	return ix, bf, nil
}
