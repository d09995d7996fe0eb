package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AuraReaper/voom/internal/drivers"
	"github.com/AuraReaper/voom/internal/geo"
	"github.com/AuraReaper/voom/internal/models"
	"github.com/AuraReaper/voom/internal/observability"
	"github.com/AuraReaper/voom/internal/trip"
)

type Config struct {
	Precision   uint
	MaxRings    int           // ring expansion bound for the geohash search
	MaxRetries  int           // driver offers per trip before giving up
	OfferWindow time.Duration // accept/decline deadline per offer
}

func (c *Config) defaults() {
	if c.Precision == 0 {
		c.Precision = geo.DefaultPrecision
	}
	if c.MaxRings <= 0 {
		c.MaxRings = 4
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.OfferWindow <= 0 {
		c.OfferWindow = 30 * time.Second
	}
}

// Coordinator turns a requested trip into a driver assignment. Each trip
// gets one dispatch goroutine that offers the trip to candidates in
// proximity order, excluding drivers who decline, widening the geohash
// search one ring at a time, and giving up after the retry bound.
//
// The coordinator reads an index snapshot without locks and re-validates
// idleness at reservation time inside the directory's lock, which closes the
// race between snapshot and commit. Offer timeouts are injected as synthetic
// declines through the lifecycle's serialized per-trip path, never applied
// from the timer directly.
type Coordinator struct {
	geo    geo.Index
	pool   *drivers.Directory
	trips  *trip.Lifecycle
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]chan response
}

type response struct {
	driverID string
	accepted bool
}

func NewCoordinator(index geo.Index, pool *drivers.Directory, trips *trip.Lifecycle, cfg Config, logger *slog.Logger) *Coordinator {
	cfg.defaults()
	return &Coordinator{
		geo:     index,
		pool:    pool,
		trips:   trips,
		cfg:     cfg,
		logger:  logger,
		pending: make(map[string]chan response),
	}
}

// Dispatch starts the matching loop for a requested trip.
func (c *Coordinator) Dispatch(tripID string) {
	go c.run(context.Background(), tripID)
}

// DriverResponded is wired to the lifecycle's driver-response hook. It routes
// an applied accept/decline to the dispatch goroutine waiting on the trip.
func (c *Coordinator) DriverResponded(tripID, driverID string, accepted bool) {
	c.mu.Lock()
	ch, ok := c.pending[tripID]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- response{driverID: driverID, accepted: accepted}:
	default:
		c.logger.Warn("response channel full", "trip_id", tripID, "driver_id", driverID)
	}
}

func (c *Coordinator) run(ctx context.Context, tripID string) {
	start := time.Now()

	respCh := make(chan response, 8)
	c.mu.Lock()
	c.pending[tripID] = respCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, tripID)
		c.mu.Unlock()
	}()

	excluded := make(map[string]struct{})
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		t, err := c.trips.Get(tripID)
		if err != nil || t.Status != models.StatusRequested {
			return
		}

		driverID, err := c.reserveCandidate(ctx, t, excluded)
		if err != nil {
			if !errors.Is(err, trip.ErrNoDriverAvailable) {
				c.logger.Error("candidate search failed", "trip_id", tripID, "error", err)
			}
			break
		}

		if err := c.trips.Assign(ctx, tripID, driverID); err != nil {
			c.pool.Release(driverID, tripID)
			if errors.Is(err, trip.ErrInvalidRequest) {
				// Candidate vanished between reservation and commit.
				excluded[driverID] = struct{}{}
				continue
			}
			// Trip moved on while we were searching (rider cancelled).
			return
		}
		c.logger.Info("driver offered trip", "trip_id", tripID, "driver_id", driverID, "attempt", attempt+1)

		timer := time.NewTimer(c.cfg.OfferWindow)
		accepted, done := c.awaitResponse(ctx, tripID, driverID, respCh, timer)
		timer.Stop()
		if done {
			if accepted {
				observability.MatchLatency.Observe(time.Since(start).Seconds())
				c.logger.Info("trip matched", "trip_id", tripID, "driver_id", driverID)
			}
			return
		}
		excluded[driverID] = struct{}{}
	}

	c.logger.Info("match exhausted", "trip_id", tripID)
	if err := c.trips.Cancel(ctx, tripID, "", models.CancelReasonNoDriverAvailable); err != nil &&
		!errors.Is(err, trip.ErrStaleTransition) {
		c.logger.Error("failed to cancel unmatched trip", "trip_id", tripID, "error", err)
	}
}

// awaitResponse waits for the offered driver's answer or the offer window to
// lapse. It returns done=true when the dispatch loop should stop (accept, or
// the trip left our hands), and done=false to try the next candidate.
func (c *Coordinator) awaitResponse(ctx context.Context, tripID, driverID string, respCh chan response, timer *time.Timer) (accepted, done bool) {
	for {
		select {
		case resp := <-respCh:
			if resp.driverID != driverID {
				// Leftover answer from an earlier offer cycle.
				continue
			}
			if resp.accepted {
				return true, true
			}
			return false, false

		case <-timer.C:
			// Implicit decline, applied through the same serialized path as
			// a real one. A stale result means the driver's accept won the
			// race against the timer.
			err := c.trips.Decline(ctx, tripID, driverID)
			if err == nil {
				c.logger.Info("offer timed out", "trip_id", tripID, "driver_id", driverID)
				c.drainOwn(respCh, driverID)
				return false, false
			}
			if errors.Is(err, trip.ErrStaleTransition) {
				if t, gerr := c.trips.Get(tripID); gerr == nil && t.DriverID == driverID && !t.Status.Terminal() {
					return true, true
				}
			}
			return false, true

		case <-ctx.Done():
			return false, true
		}
	}
}

// drainOwn discards the synthetic decline echoed back through the lifecycle
// hook so it is not misread during the next offer.
func (c *Coordinator) drainOwn(respCh chan response, driverID string) {
	for {
		select {
		case resp := <-respCh:
			if resp.driverID == driverID {
				return
			}
		default:
			return
		}
	}
}

// reserveCandidate snapshots the geohash index around the pickup cell,
// widening one ring per empty result, and reserves the nearest idle driver.
// Distance ties break on the lower actor id for determinism. An exhausted
// search returns ErrNoDriverAvailable.
func (c *Coordinator) reserveCandidate(ctx context.Context, t models.Trip, excluded map[string]struct{}) (string, error) {
	center := geo.Encode(t.Pickup, c.cfg.Precision)
	for rings := 1; rings <= c.cfg.MaxRings; rings++ {
		ids, err := c.geo.Query(ctx, geo.CellsWithin(center, rings))
		if err != nil {
			return "", fmt.Errorf("geo query: %w", err)
		}

		type candidate struct {
			id   string
			dist float64
		}
		var cands []candidate
		for _, id := range ids {
			if _, skip := excluded[id]; skip {
				continue
			}
			d, ok := c.pool.Get(id)
			if !ok || !c.pool.Idle(id) {
				continue
			}
			if t.Fare != nil && t.Fare.PackageSlug != "" && d.PackageSlug != t.Fare.PackageSlug {
				continue
			}
			cands = append(cands, candidate{id: id, dist: geo.Haversine(t.Pickup, d.Location)})
		}
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].dist != cands[j].dist {
				return cands[i].dist < cands[j].dist
			}
			return cands[i].id < cands[j].id
		})

		for _, cand := range cands {
			if c.pool.Reserve(cand.id, t.ID) {
				return cand.id, nil
			}
		}
	}
	return "", trip.ErrNoDriverAvailable
}
