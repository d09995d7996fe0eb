package trip

import (
	"fmt"
	"sync"
	"time"

	"github.com/AuraReaper/voom/internal/models"
)

// FareStore holds issued fare quotes until they are consumed by a start-trip
// call or expire. A previewed-but-not-started trip exists only as its quotes
// here; the Trip entity is created when the rider commits to a fare.
type FareStore struct {
	mu    sync.Mutex
	fares map[string]*models.RideFare
	ttl   time.Duration
	now   func() time.Time
}

func NewFareStore(ttl time.Duration) *FareStore {
	return &FareStore{
		fares: make(map[string]*models.RideFare),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Put stores a quote, first sweeping any expired entries so abandoned
// previews do not accumulate.
func (f *FareStore) Put(fare *models.RideFare) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	for id, q := range f.fares {
		if now.Sub(q.CreatedAt) > f.ttl {
			delete(f.fares, id)
		}
	}
	fare.CreatedAt = now
	f.fares[fare.ID] = fare
}

// Take validates and consumes a quote. Expired entries are deleted on the
// way out.
func (f *FareStore) Take(fareID, userID string) (*models.RideFare, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fare, ok := f.fares[fareID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown fare %q", ErrInvalidRequest, fareID)
	}
	if fare.UserID != userID {
		return nil, fmt.Errorf("%w: fare %q does not belong to user", ErrInvalidRequest, fareID)
	}
	if f.now().Sub(fare.CreatedAt) > f.ttl {
		delete(f.fares, fareID)
		return nil, ErrQuoteExpired
	}
	delete(f.fares, fareID)
	return fare, nil
}
