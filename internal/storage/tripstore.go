package storage

import (
	"context"
	"sync"

	"github.com/AuraReaper/voom/internal/models"
)

// TripStore persists trip snapshots. The lifecycle remains the authority on
// trip state; the store is write-behind bookkeeping plus recovery input.
type TripStore interface {
	SaveTrip(ctx context.Context, t *models.Trip) error
	UpdateTrip(ctx context.Context, t *models.Trip) error
}

type MemoryStore struct {
	mu    sync.RWMutex
	trips map[string]models.Trip
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trips: make(map[string]models.Trip)}
}

func (m *MemoryStore) SaveTrip(_ context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = *t
	return nil
}

func (m *MemoryStore) UpdateTrip(_ context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = *t
	return nil
}

func (m *MemoryStore) Get(id string) (models.Trip, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	return t, ok
}
