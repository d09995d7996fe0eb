package geo

import (
	"context"
	"sync"

	"github.com/AuraReaper/voom/internal/models"
)

// MemoryIndex is the in-process Index used when no Redis address is
// configured. Cell membership and the reverse actor->cell mapping are kept
// under one RWMutex; operations are cheap enough that bucket-level locking
// has not been worth it.
type MemoryIndex struct {
	mu        sync.RWMutex
	precision uint
	cells     map[string]map[string]struct{} // cell -> actor ids
	actors    map[string]string              // actor id -> current cell
}

func NewMemoryIndex(precision uint) *MemoryIndex {
	if precision == 0 {
		precision = DefaultPrecision
	}
	return &MemoryIndex{
		precision: precision,
		cells:     make(map[string]map[string]struct{}),
		actors:    make(map[string]string),
	}
}

func (m *MemoryIndex) Upsert(_ context.Context, actorID string, c models.Coordinate) (string, error) {
	cell := Encode(c, m.precision)
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.actors[actorID]; ok {
		if prev == cell {
			return cell, nil
		}
		m.evict(prev, actorID)
	}
	bucket, ok := m.cells[cell]
	if !ok {
		bucket = make(map[string]struct{})
		m.cells[cell] = bucket
	}
	bucket[actorID] = struct{}{}
	m.actors[actorID] = cell
	return cell, nil
}

func (m *MemoryIndex) Query(_ context.Context, cells []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, cell := range cells {
		for id := range m.cells[cell] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *MemoryIndex) Remove(_ context.Context, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cell, ok := m.actors[actorID]; ok {
		m.evict(cell, actorID)
		delete(m.actors, actorID)
	}
	return nil
}

// evict drops actorID from a cell bucket, removing empty buckets so the map
// does not grow with every cell ever visited. Caller holds mu.
func (m *MemoryIndex) evict(cell, actorID string) {
	bucket := m.cells[cell]
	delete(bucket, actorID)
	if len(bucket) == 0 {
		delete(m.cells, cell)
	}
}
