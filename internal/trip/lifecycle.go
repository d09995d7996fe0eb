package trip

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AuraReaper/voom/internal/contracts"
	"github.com/AuraReaper/voom/internal/models"
	"github.com/AuraReaper/voom/internal/observability"
	"github.com/AuraReaper/voom/internal/payments"
	"github.com/AuraReaper/voom/internal/storage"
)

// Notifier delivers trip events to connected actors. Send is for trip-state
// messages which must not be dropped; SendDroppable is for location traffic.
type Notifier interface {
	Send(actorID string, msg contracts.WSMessage) error
	SendDroppable(actorID string, msg contracts.WSMessage) error
}

// DriverPool is the slice of the driver directory the lifecycle needs:
// profile lookup, releasing a reservation, and the driver's active trip.
type DriverPool interface {
	Get(id string) (models.Driver, bool)
	Release(id, tripID string)
	ActiveTrip(id string) (string, bool)
}

// Lifecycle owns every trip from creation to its terminal state. Each trip
// has its own lock, so events for different trips run fully in parallel
// while concurrent accept/decline/cancel events for one trip are serialized
// and evaluated against a single authoritative status. That serialization is
// what guarantees at most one driver ever reaches accepted for a trip.
type Lifecycle struct {
	mu         sync.Mutex
	trips      map[string]*tripState
	riderTrips map[string]string

	notifier Notifier
	pool     DriverPool
	store    storage.TripStore
	payments payments.Processor
	logger   *slog.Logger

	// autoStart moves accepted trips straight to in_progress. The observed
	// client has no separate pickup confirmation, so this defaults on; with
	// it off the driver sends an explicit Start.
	autoStart bool
	currency  string

	// OnDriverResponse is invoked outside the trip lock after an accept or
	// decline is applied, so the matching coordinator can advance its offer
	// loop without holding lifecycle state.
	OnDriverResponse func(tripID, driverID string, accepted bool)
}

type tripState struct {
	mu   sync.Mutex
	trip models.Trip
}

type Options struct {
	AutoStart bool
	Currency  string
}

func NewLifecycle(notifier Notifier, pool DriverPool, store storage.TripStore, proc payments.Processor, logger *slog.Logger, opts Options) *Lifecycle {
	if opts.Currency == "" {
		opts.Currency = "inr"
	}
	return &Lifecycle{
		trips:      make(map[string]*tripState),
		riderTrips: make(map[string]string),
		notifier:   notifier,
		pool:       pool,
		store:      store,
		payments:   proc,
		logger:     logger,
		autoStart:  opts.AutoStart,
		currency:   opts.Currency,
	}
}

// Create turns a consumed fare quote into a trip in the requested state.
// A rider can hold at most one active trip.
func (l *Lifecycle) Create(ctx context.Context, fare *models.RideFare, pickup, destination models.Coordinate) (models.Trip, error) {
	now := time.Now()
	t := models.Trip{
		ID:          uuid.NewString(),
		RiderID:     fare.UserID,
		Pickup:      pickup,
		Destination: destination,
		Fare:        fare,
		Status:      models.StatusRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	l.mu.Lock()
	if existing, ok := l.riderTrips[fare.UserID]; ok {
		l.mu.Unlock()
		return models.Trip{}, fmt.Errorf("%w: rider already in trip %s", ErrInvalidRequest, existing)
	}
	l.trips[t.ID] = &tripState{trip: t}
	l.riderTrips[fare.UserID] = t.ID
	l.mu.Unlock()

	if err := l.store.SaveTrip(ctx, &t); err != nil {
		l.logger.Error("trip save failed", "trip_id", t.ID, "error", err)
	}
	observability.TripsCreated.Inc()
	l.sendStatus(&t, "")
	return t, nil
}

// Assign commits a match attempt: requested -> driver_assigned. Only the
// matching coordinator calls this, never a client event.
func (l *Lifecycle) Assign(ctx context.Context, tripID, driverID string) error {
	st, err := l.state(tripID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.trip.Status != models.StatusRequested {
		return ErrStaleTransition
	}
	// The reservation can vanish between the coordinator's snapshot and this
	// commit, for example when the driver disconnects mid-search.
	if tid, ok := l.pool.ActiveTrip(driverID); !ok || tid != tripID {
		return fmt.Errorf("%w: driver %q not reserved for trip", ErrInvalidRequest, driverID)
	}
	st.trip.DriverID = driverID
	l.applyStatus(ctx, st, models.StatusDriverAssigned, "")

	_ = l.notifier.Send(driverID, contracts.WSMessage{
		Type: contracts.DriverCmdTripRequest,
		Data: contracts.TripRequestOffer{
			TripID:      st.trip.ID,
			RiderID:     st.trip.RiderID,
			Pickup:      st.trip.Pickup,
			Destination: st.trip.Destination,
			Fare:        st.trip.Fare,
		},
	})
	l.sendStatus(&st.trip, "")
	observability.MatchAttempts.Inc()
	return nil
}

// Accept applies a driver.cmd.trip_accept. The identity guard rejects stale
// and duplicate accepts: the trip must be driver_assigned to exactly this
// driver. Losers get ErrStaleTransition and no state changes.
func (l *Lifecycle) Accept(ctx context.Context, tripID, driverID string) error {
	if tripID == "" || driverID == "" {
		return fmt.Errorf("%w: missing trip or driver id", ErrInvalidRequest)
	}
	st, err := l.state(tripID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	if st.trip.Status != models.StatusDriverAssigned || st.trip.DriverID != driverID {
		st.mu.Unlock()
		observability.StaleTransitions.Inc()
		l.logger.Debug("stale accept ignored", "trip_id", tripID, "driver_id", driverID)
		return ErrStaleTransition
	}
	l.applyStatus(ctx, st, models.StatusAccepted, "")

	var driver models.Driver
	if d, ok := l.pool.Get(driverID); ok {
		driver = d
	}
	_ = l.notifier.Send(st.trip.RiderID, contracts.WSMessage{
		Type: contracts.TripEventDriverAssigned,
		Data: contracts.TripStatusUpdate{TripID: tripID, Status: st.trip.Status, Driver: &driver},
	})
	_ = l.notifier.Send(driverID, contracts.WSMessage{
		Type: contracts.TripEventStatusUpdate,
		Data: contracts.TripStatusUpdate{TripID: tripID, Status: st.trip.Status},
	})

	if l.autoStart {
		l.applyStatus(ctx, st, models.StatusInProgress, "")
		l.sendStatus(&st.trip, "")
	}
	st.mu.Unlock()

	if l.OnDriverResponse != nil {
		l.OnDriverResponse(tripID, driverID, true)
	}
	return nil
}

// Decline applies a driver.cmd.trip_decline under the same identity guard as
// Accept. The trip reverts to requested and the driver returns to the idle
// pool; the coordinator picks the next candidate.
func (l *Lifecycle) Decline(ctx context.Context, tripID, driverID string) error {
	if tripID == "" || driverID == "" {
		return fmt.Errorf("%w: missing trip or driver id", ErrInvalidRequest)
	}
	st, err := l.state(tripID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	if st.trip.Status != models.StatusDriverAssigned || st.trip.DriverID != driverID {
		st.mu.Unlock()
		observability.StaleTransitions.Inc()
		l.logger.Debug("stale decline ignored", "trip_id", tripID, "driver_id", driverID)
		return ErrStaleTransition
	}
	st.trip.DriverID = ""
	l.applyStatus(ctx, st, models.StatusRequested, "")
	st.mu.Unlock()

	l.pool.Release(driverID, tripID)
	if l.OnDriverResponse != nil {
		l.OnDriverResponse(tripID, driverID, false)
	}
	return nil
}

// Start is the explicit pickup confirmation used when autoStart is off:
// accepted -> in_progress.
func (l *Lifecycle) Start(ctx context.Context, tripID, driverID string) error {
	st, err := l.state(tripID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.trip.Status != models.StatusAccepted || st.trip.DriverID != driverID {
		observability.StaleTransitions.Inc()
		return ErrStaleTransition
	}
	l.applyStatus(ctx, st, models.StatusInProgress, "")
	l.sendStatus(&st.trip, "")
	return nil
}

// Complete closes an in-progress trip at drop-off. The payment session is
// opened first; if the processor fails the trip stays in_progress so the
// completion can be retried.
func (l *Lifecycle) Complete(ctx context.Context, tripID, driverID string) error {
	st, err := l.state(tripID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.trip.Status != models.StatusInProgress || st.trip.DriverID != driverID {
		observability.StaleTransitions.Inc()
		return ErrStaleTransition
	}

	amount := int64(math.Round(st.trip.Fare.TotalPrice * 100))
	session, err := l.payments.Hold(ctx, amount, l.currency, st.trip.RiderID)
	if err != nil {
		return fmt.Errorf("payment session: %w", err)
	}
	st.trip.PaymentSession = session
	l.applyStatus(ctx, st, models.StatusCompleted, "")
	l.release(&st.trip)

	_ = l.notifier.Send(st.trip.RiderID, contracts.WSMessage{
		Type: contracts.TripEventPaymentSessionCreated,
		Data: contracts.PaymentSessionCreated{TripID: tripID, SessionID: session, Amount: st.trip.Fare.TotalPrice},
	})
	l.sendStatus(&st.trip, "")
	observability.TripsCompleted.Inc()
	return nil
}

// Cancel moves a trip to cancelled from any non-terminal state. actorID must
// be the rider, the assigned driver, or empty for a system cancellation.
// Cancelling a terminal trip is a stale event, not an error.
func (l *Lifecycle) Cancel(ctx context.Context, tripID, actorID, reason string) error {
	st, err := l.state(tripID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.trip.Status.Terminal() {
		observability.StaleTransitions.Inc()
		return ErrStaleTransition
	}
	if actorID != "" && actorID != st.trip.RiderID && actorID != st.trip.DriverID {
		return fmt.Errorf("%w: actor %q not part of trip", ErrInvalidRequest, actorID)
	}

	if st.trip.PaymentSession != "" {
		if err := l.payments.Cancel(ctx, st.trip.PaymentSession); err != nil {
			l.logger.Error("payment session cancel failed", "trip_id", tripID, "error", err)
		}
		st.trip.PaymentSession = ""
	}

	assignedDriver := st.trip.DriverID
	l.applyStatus(ctx, st, models.StatusCancelled, reason)
	l.release(&st.trip)

	if reason == models.CancelReasonNoDriverAvailable {
		_ = l.notifier.Send(st.trip.RiderID, contracts.WSMessage{
			Type: contracts.TripEventNoDriversFound,
			Data: contracts.TripStatusUpdate{TripID: tripID, Status: st.trip.Status, Reason: reason},
		})
	} else {
		l.sendTo(st.trip.RiderID, &st.trip, reason)
	}
	if assignedDriver != "" {
		l.sendTo(assignedDriver, &st.trip, reason)
	}
	observability.TripsCancelled.WithLabelValues(reason).Inc()
	return nil
}

// HandleDisconnect is wired into the connection registry. A vanished actor's
// active trip is cancelled through the same serialized path as an explicit
// cancel; nothing here is a special interrupt.
func (l *Lifecycle) HandleDisconnect(actorID string) {
	l.mu.Lock()
	tripID, ok := l.riderTrips[actorID]
	l.mu.Unlock()
	if !ok {
		tripID, ok = l.pool.ActiveTrip(actorID)
		if !ok {
			return
		}
		if t, err := l.Get(tripID); err == nil && t.DriverID != actorID {
			// Reserved but never assigned: the offer has not been committed,
			// so free the driver and let the coordinator try the next one.
			l.pool.Release(actorID, tripID)
			return
		}
	}
	if err := l.Cancel(context.Background(), tripID, actorID, models.CancelReasonDisconnect); err != nil {
		l.logger.Debug("disconnect cancel skipped", "trip_id", tripID, "actor_id", actorID, "error", err)
	}
}

// Replay resends the current trip state to a reconnecting actor so a driver
// that dropped mid-offer sees its pending request again.
func (l *Lifecycle) Replay(actorID string) {
	l.mu.Lock()
	tripID, ok := l.riderTrips[actorID]
	l.mu.Unlock()
	if !ok {
		tripID, ok = l.pool.ActiveTrip(actorID)
	}
	if !ok {
		return
	}
	st, err := l.state(tripID)
	if err != nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.trip.Status == models.StatusDriverAssigned && actorID == st.trip.DriverID {
		_ = l.notifier.Send(actorID, contracts.WSMessage{
			Type: contracts.DriverCmdTripRequest,
			Data: contracts.TripRequestOffer{
				TripID:      st.trip.ID,
				RiderID:     st.trip.RiderID,
				Pickup:      st.trip.Pickup,
				Destination: st.trip.Destination,
				Fare:        st.trip.Fare,
			},
		})
		return
	}
	l.sendTo(actorID, &st.trip, st.trip.CancelReason)
}

// Get returns a copy of the trip; all reads of trip state go through here.
func (l *Lifecycle) Get(tripID string) (models.Trip, error) {
	st, err := l.state(tripID)
	if err != nil {
		return models.Trip{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.trip, nil
}

// ActiveTripForRider reports the rider's current trip, if any.
func (l *Lifecycle) ActiveTripForRider(riderID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.riderTrips[riderID]
	return id, ok
}

func (l *Lifecycle) state(tripID string) (*tripState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.trips[tripID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown trip %q", ErrInvalidRequest, tripID)
	}
	return st, nil
}

// applyStatus mutates status under the caller-held trip lock and persists
// the snapshot.
func (l *Lifecycle) applyStatus(ctx context.Context, st *tripState, status models.TripStatus, reason string) {
	st.trip.Status = status
	st.trip.CancelReason = reason
	st.trip.UpdatedAt = time.Now()
	if err := l.store.UpdateTrip(ctx, &st.trip); err != nil {
		l.logger.Error("trip update failed", "trip_id", st.trip.ID, "status", status, "error", err)
	}
}

// release clears the rider's active-trip slot and frees the driver once a
// trip reaches a terminal state. Caller holds the trip lock.
func (l *Lifecycle) release(t *models.Trip) {
	l.mu.Lock()
	if l.riderTrips[t.RiderID] == t.ID {
		delete(l.riderTrips, t.RiderID)
	}
	l.mu.Unlock()
	if t.DriverID != "" {
		l.pool.Release(t.DriverID, t.ID)
	}
}

func (l *Lifecycle) sendStatus(t *models.Trip, reason string) {
	l.sendTo(t.RiderID, t, reason)
	if t.DriverID != "" {
		l.sendTo(t.DriverID, t, reason)
	}
}

func (l *Lifecycle) sendTo(actorID string, t *models.Trip, reason string) {
	if err := l.notifier.Send(actorID, contracts.WSMessage{
		Type: contracts.TripEventStatusUpdate,
		Data: contracts.TripStatusUpdate{TripID: t.ID, Status: t.Status, Reason: reason},
	}); err != nil {
		l.logger.Debug("status update not delivered", "actor_id", actorID, "trip_id", t.ID, "error", err)
	}
}
