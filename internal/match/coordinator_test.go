package match

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AuraReaper/voom/internal/contracts"
	"github.com/AuraReaper/voom/internal/drivers"
	"github.com/AuraReaper/voom/internal/geo"
	"github.com/AuraReaper/voom/internal/models"
	"github.com/AuraReaper/voom/internal/payments"
	"github.com/AuraReaper/voom/internal/storage"
	"github.com/AuraReaper/voom/internal/trip"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs map[string][]contracts.WSMessage
}

func (n *recordingNotifier) Send(actorID string, msg contracts.WSMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs[actorID] = append(n.msgs[actorID], msg)
	return nil
}

func (n *recordingNotifier) SendDroppable(actorID string, msg contracts.WSMessage) error {
	return n.Send(actorID, msg)
}

func (n *recordingNotifier) count(actorID, msgType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.msgs[actorID] {
		if m.Type == msgType {
			c++
		}
	}
	return c
}

type harness struct {
	index     *geo.MemoryIndex
	pool      *drivers.Directory
	lifecycle *trip.Lifecycle
	coord     *Coordinator
	notifier  *recordingNotifier
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := &recordingNotifier{msgs: make(map[string][]contracts.WSMessage)}
	pool := drivers.NewDirectory()
	index := geo.NewMemoryIndex(geo.DefaultPrecision)
	lifecycle := trip.NewLifecycle(notifier, pool, storage.NewMemoryStore(), payments.Noop{}, logger, trip.Options{AutoStart: true})
	coord := NewCoordinator(index, pool, lifecycle, cfg, logger)
	lifecycle.OnDriverResponse = coord.DriverResponded
	return &harness{index: index, pool: pool, lifecycle: lifecycle, coord: coord, notifier: notifier}
}

func (h *harness) addDriver(t *testing.T, id, slug string, loc models.Coordinate) {
	t.Helper()
	h.pool.Register(id, slug)
	cell, err := h.index.Upsert(context.Background(), id, loc)
	if err != nil {
		t.Fatalf("upsert %s: %v", id, err)
	}
	h.pool.SetLocation(id, loc, cell)
}

func (h *harness) requestTrip(t *testing.T, riderID string, pickup models.Coordinate) models.Trip {
	t.Helper()
	fare := &models.RideFare{
		ID:          "fare-" + riderID,
		UserID:      riderID,
		PackageSlug: "sedan",
		TotalPrice:  250,
	}
	tr, err := h.lifecycle.Create(context.Background(), fare, pickup, models.Coordinate{Latitude: 28.7, Longitude: 77.3})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	return tr
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

var pickup = models.Coordinate{Latitude: 28.6139, Longitude: 77.2090}

func TestNearestIdleDriverGetsTheOffer(t *testing.T) {
	h := newHarness(t, Config{})
	h.addDriver(t, "d-near", "sedan", models.Coordinate{Latitude: 28.6141, Longitude: 77.2092})
	h.addDriver(t, "d-far", "sedan", models.Coordinate{Latitude: 28.6160, Longitude: 77.2110})

	tr := h.requestTrip(t, "rider-1", pickup)
	h.coord.Dispatch(tr.ID)

	waitFor(t, func() bool { return h.notifier.count("d-near", contracts.DriverCmdTripRequest) == 1 })
	if h.notifier.count("d-far", contracts.DriverCmdTripRequest) != 0 {
		t.Fatal("farther driver should not be offered first")
	}

	if err := h.lifecycle.Accept(context.Background(), tr.ID, "d-near"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	waitFor(t, func() bool {
		got, _ := h.lifecycle.Get(tr.ID)
		return got.Status == models.StatusInProgress
	})
	got, _ := h.lifecycle.Get(tr.ID)
	if got.DriverID != "d-near" {
		t.Fatalf("matched %q, want d-near", got.DriverID)
	}
}

func TestDeclineMovesToNextCandidate(t *testing.T) {
	h := newHarness(t, Config{})
	h.addDriver(t, "d-near", "sedan", models.Coordinate{Latitude: 28.6141, Longitude: 77.2092})
	h.addDriver(t, "d-far", "sedan", models.Coordinate{Latitude: 28.6160, Longitude: 77.2110})

	tr := h.requestTrip(t, "rider-1", pickup)
	h.coord.Dispatch(tr.ID)

	waitFor(t, func() bool { return h.notifier.count("d-near", contracts.DriverCmdTripRequest) == 1 })
	if err := h.lifecycle.Decline(context.Background(), tr.ID, "d-near"); err != nil {
		t.Fatalf("decline: %v", err)
	}

	waitFor(t, func() bool { return h.notifier.count("d-far", contracts.DriverCmdTripRequest) == 1 })
	// The decliner is excluded for the rest of this trip.
	if h.notifier.count("d-near", contracts.DriverCmdTripRequest) != 1 {
		t.Fatal("declining driver was offered the trip again")
	}

	if err := h.lifecycle.Accept(context.Background(), tr.ID, "d-far"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	got, _ := h.lifecycle.Get(tr.ID)
	if got.DriverID != "d-far" {
		t.Fatalf("matched %q, want d-far", got.DriverID)
	}
	if !h.pool.Idle("d-near") {
		t.Fatal("declining driver not returned to the idle pool")
	}
}

func TestExhaustionCancelsTrip(t *testing.T) {
	h := newHarness(t, Config{MaxRetries: 2})
	h.addDriver(t, "d1", "sedan", models.Coordinate{Latitude: 28.6141, Longitude: 77.2092})

	tr := h.requestTrip(t, "rider-1", pickup)
	h.coord.Dispatch(tr.ID)

	waitFor(t, func() bool { return h.notifier.count("d1", contracts.DriverCmdTripRequest) == 1 })
	if err := h.lifecycle.Decline(context.Background(), tr.ID, "d1"); err != nil {
		t.Fatalf("decline: %v", err)
	}

	waitFor(t, func() bool {
		got, _ := h.lifecycle.Get(tr.ID)
		return got.Status == models.StatusCancelled
	})
	got, _ := h.lifecycle.Get(tr.ID)
	if got.CancelReason != models.CancelReasonNoDriverAvailable {
		t.Fatalf("cancel reason = %q", got.CancelReason)
	}
	if h.notifier.count("rider-1", contracts.TripEventNoDriversFound) != 1 {
		t.Fatal("rider did not get the no-drivers event")
	}
	if !h.pool.Idle("d1") {
		t.Fatal("driver left reserved after exhaustion")
	}
}

func TestBusyAndMismatchedDriversAreSkipped(t *testing.T) {
	h := newHarness(t, Config{})
	h.addDriver(t, "d-busy", "sedan", models.Coordinate{Latitude: 28.6141, Longitude: 77.2092})
	h.addDriver(t, "d-van", "van", models.Coordinate{Latitude: 28.6142, Longitude: 77.2093})
	if !h.pool.Reserve("d-busy", "other-trip") {
		t.Fatal("reserve setup failed")
	}

	tr := h.requestTrip(t, "rider-1", pickup)
	h.coord.Dispatch(tr.ID)

	waitFor(t, func() bool {
		got, _ := h.lifecycle.Get(tr.ID)
		return got.Status == models.StatusCancelled
	})
	if h.notifier.count("d-busy", contracts.DriverCmdTripRequest) != 0 {
		t.Fatal("busy driver received an offer")
	}
	if h.notifier.count("d-van", contracts.DriverCmdTripRequest) != 0 {
		t.Fatal("wrong-package driver received an offer")
	}
}

func TestNoDriversCancelsImmediately(t *testing.T) {
	h := newHarness(t, Config{})
	tr := h.requestTrip(t, "rider-1", pickup)
	h.coord.Dispatch(tr.ID)

	waitFor(t, func() bool {
		got, _ := h.lifecycle.Get(tr.ID)
		return got.Status == models.StatusCancelled
	})
	if h.notifier.count("rider-1", contracts.TripEventNoDriversFound) != 1 {
		t.Fatal("rider did not get the no-drivers event")
	}
}

func TestOfferTimeoutCountsAsDecline(t *testing.T) {
	h := newHarness(t, Config{MaxRetries: 1, OfferWindow: 25 * time.Millisecond})
	h.addDriver(t, "d-slow", "sedan", models.Coordinate{Latitude: 28.6141, Longitude: 77.2092})

	tr := h.requestTrip(t, "rider-1", pickup)
	h.coord.Dispatch(tr.ID)

	// The driver never answers; the window lapses and the match gives up.
	waitFor(t, func() bool {
		got, _ := h.lifecycle.Get(tr.ID)
		return got.Status == models.StatusCancelled
	})
	got, _ := h.lifecycle.Get(tr.ID)
	if got.CancelReason != models.CancelReasonNoDriverAvailable {
		t.Fatalf("cancel reason = %q", got.CancelReason)
	}
	if !h.pool.Idle("d-slow") {
		t.Fatal("timed-out driver left reserved")
	}

	// The late accept lands on a terminal trip and is rejected as stale.
	if err := h.lifecycle.Accept(context.Background(), tr.ID, "d-slow"); err == nil {
		t.Fatal("late accept should fail")
	}
}

func TestSearchReportsNoDriverAvailable(t *testing.T) {
	h := newHarness(t, Config{})
	tr := h.requestTrip(t, "rider-1", pickup)

	if _, err := h.coord.reserveCandidate(context.Background(), tr, map[string]struct{}{}); !errors.Is(err, trip.ErrNoDriverAvailable) {
		t.Fatalf("expected ErrNoDriverAvailable, got %v", err)
	}

	// An excluded-only pool is just as exhausted.
	h.addDriver(t, "d1", "sedan", models.Coordinate{Latitude: 28.6141, Longitude: 77.2092})
	excluded := map[string]struct{}{"d1": {}}
	if _, err := h.coord.reserveCandidate(context.Background(), tr, excluded); !errors.Is(err, trip.ErrNoDriverAvailable) {
		t.Fatalf("expected ErrNoDriverAvailable, got %v", err)
	}
}

func TestRiderCancelStopsDispatch(t *testing.T) {
	h := newHarness(t, Config{})
	h.addDriver(t, "d1", "sedan", models.Coordinate{Latitude: 28.6141, Longitude: 77.2092})

	tr := h.requestTrip(t, "rider-1", pickup)
	if err := h.lifecycle.Cancel(context.Background(), tr.ID, "rider-1", models.CancelReasonRider); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	h.coord.Dispatch(tr.ID)

	// Give the dispatch goroutine a beat; it must not offer a cancelled trip.
	time.Sleep(20 * time.Millisecond)
	if h.notifier.count("d1", contracts.DriverCmdTripRequest) != 0 {
		t.Fatal("cancelled trip was offered to a driver")
	}
}
