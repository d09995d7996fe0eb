package location

import (
	"context"
	"log/slog"

	"github.com/AuraReaper/voom/internal/contracts"
	"github.com/AuraReaper/voom/internal/drivers"
	"github.com/AuraReaper/voom/internal/geo"
	"github.com/AuraReaper/voom/internal/models"
	"github.com/AuraReaper/voom/internal/registry"
	"github.com/AuraReaper/voom/internal/trip"
)

// Publisher forwards raw location updates to the ingest pipeline. Nil-able;
// publishing is best effort and never gates the index update.
type Publisher interface {
	PublishLocation(ctx context.Context, actorID string, c models.Coordinate) error
}

// Processor ingests the periodic location stream from both roles. Every
// update lands in the geohash index; what flows back out depends on the
// actor: idle riders get a nearby-driver snapshot, riders with an in-trip
// driver get that driver's live position instead. Updates are idempotent, so
// client-side frequency does not matter for correctness.
type Processor struct {
	index    geo.Index
	pool     *drivers.Directory
	sessions *registry.Registry
	trips    *trip.Lifecycle
	producer Publisher
	logger   *slog.Logger
}

func NewProcessor(index geo.Index, pool *drivers.Directory, sessions *registry.Registry, trips *trip.Lifecycle, producer Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		index:    index,
		pool:     pool,
		sessions: sessions,
		trips:    trips,
		producer: producer,
		logger:   logger,
	}
}

// OnDriverUpdate handles a driver.cmd.location message.
func (p *Processor) OnDriverUpdate(ctx context.Context, driverID string, c models.Coordinate) {
	cell, err := p.index.Upsert(ctx, driverID, c)
	if err != nil {
		p.logger.Error("geo upsert failed", "actor_id", driverID, "error", err)
		return
	}
	p.pool.SetLocation(driverID, c, cell)
	p.publish(ctx, driverID, c)

	tripID, ok := p.pool.ActiveTrip(driverID)
	if !ok {
		return
	}
	t, err := p.trips.Get(tripID)
	if err != nil || t.Status.Terminal() {
		return
	}
	// Live tracking for the paired rider, bypassing the nearby broadcast.
	_ = p.sessions.SendDroppable(t.RiderID, contracts.WSMessage{
		Type: contracts.TripEventDriverLocation,
		Data: contracts.DriverLocationUpdate{TripID: tripID, DriverID: driverID, Location: c},
	})
}

// OnRiderUpdate handles a rider.cmd.location message.
func (p *Processor) OnRiderUpdate(ctx context.Context, riderID string, c models.Coordinate) {
	cell, err := p.index.Upsert(ctx, riderID, c)
	if err != nil {
		p.logger.Error("geo upsert failed", "actor_id", riderID, "error", err)
		return
	}
	p.publish(ctx, riderID, c)

	if _, busy := p.trips.ActiveTripForRider(riderID); busy {
		return
	}
	snapshot := p.nearbyDrivers(ctx, cell)
	_ = p.sessions.SendDroppable(riderID, contracts.WSMessage{
		Type: contracts.RiderEventNearbyDrivers,
		Data: snapshot,
	})
}

// OnDisconnect removes the actor from the spatial index.
func (p *Processor) OnDisconnect(ctx context.Context, actorID string) {
	if err := p.index.Remove(ctx, actorID); err != nil {
		p.logger.Error("geo remove failed", "actor_id", actorID, "error", err)
	}
}

// nearbyDrivers snapshots the rider's 3x3 geohash block.
func (p *Processor) nearbyDrivers(ctx context.Context, cell string) []contracts.NearbyDriver {
	ids, err := p.index.Query(ctx, geo.Block(cell))
	if err != nil {
		p.logger.Error("geo query failed", "cell", cell, "error", err)
		return nil
	}
	out := make([]contracts.NearbyDriver, 0, len(ids))
	for _, id := range ids {
		d, ok := p.pool.Get(id)
		if !ok {
			continue // a rider, or a driver that just disconnected
		}
		out = append(out, contracts.NearbyDriver{
			Geohash:        d.Geohash,
			DriverID:       d.ID,
			Name:           d.Name,
			CarPlate:       d.CarPlate,
			ProfilePicture: d.ProfilePicture,
			Location:       d.Location,
		})
	}
	return out
}

func (p *Processor) publish(ctx context.Context, actorID string, c models.Coordinate) {
	if p.producer == nil {
		return
	}
	if err := p.producer.PublishLocation(ctx, actorID, c); err != nil {
		p.logger.Warn("location publish failed", "actor_id", actorID, "error", err)
	}
}
