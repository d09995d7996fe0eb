package trip

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AuraReaper/voom/internal/models"
	"github.com/AuraReaper/voom/internal/storage"
)

type fakeRoutes struct {
	route *models.Route
	err   error
}

func (f *fakeRoutes) GetRoute(context.Context, models.Coordinate, models.Coordinate) (*models.Route, error) {
	return f.route, f.err
}

func newTestService(t *testing.T) (*Service, *FareStore, *Lifecycle) {
	t.Helper()
	routes := &fakeRoutes{route: &models.Route{
		Geometry: []models.Coordinate{{Latitude: 28.6139, Longitude: 77.2090}, {Latitude: 28.7, Longitude: 77.3}},
		Distance: 12000,
		Duration: 1500,
	}}
	fares := NewFareStore(5 * time.Minute)
	lifecycle := NewLifecycle(newFakeNotifier(), newFakePool(), storage.NewMemoryStore(), &fakePayments{}, testLogger(), Options{AutoStart: true})
	return NewService(routes, fares, lifecycle, DefaultPricingConfig(), testLogger()), fares, lifecycle
}

func TestPreviewQuotesEveryPackage(t *testing.T) {
	svc, _, _ := newTestService(t)
	route, quotes, err := svc.Preview(context.Background(), "rider-1", models.Coordinate{}, models.Coordinate{})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if route == nil || route.Distance != 12000 {
		t.Fatalf("route not passed through: %+v", route)
	}
	if len(quotes) != 4 {
		t.Fatalf("expected 4 package quotes, got %d", len(quotes))
	}
	seen := map[string]bool{}
	for _, q := range quotes {
		if q.ID == "" || q.UserID != "rider-1" || q.Route == nil {
			t.Fatalf("incomplete quote: %+v", q)
		}
		if q.TotalPrice <= 0 {
			t.Fatalf("non-positive price for %s", q.PackageSlug)
		}
		seen[q.PackageSlug] = true
	}
	for _, slug := range []string{"sedan", "suv", "van", "luxury"} {
		if !seen[slug] {
			t.Fatalf("missing package %s", slug)
		}
	}
}

func TestPreviewRequiresUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, _, err := svc.Preview(context.Background(), "", models.Coordinate{}, models.Coordinate{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestStartConsumesQuoteAndDispatches(t *testing.T) {
	ctx := context.Background()
	svc, _, lifecycle := newTestService(t)
	_, quotes, err := svc.Preview(ctx, "rider-1", models.Coordinate{}, models.Coordinate{})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}

	var dispatched string
	svc.OnTripRequested = func(tripID string) { dispatched = tripID }

	tr, err := svc.Start(ctx, quotes[0].ID, "rider-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if tr.Status != models.StatusRequested {
		t.Fatalf("expected requested, got %s", tr.Status)
	}
	if dispatched != tr.ID {
		t.Fatalf("coordinator hook got %q, want %q", dispatched, tr.ID)
	}
	if tr.Pickup != quotes[0].Route.Geometry[0] {
		t.Fatalf("pickup should be the route start, got %+v", tr.Pickup)
	}
	got, err := lifecycle.Get(tr.ID)
	if err != nil || got.Fare == nil || got.Fare.ID != quotes[0].ID {
		t.Fatalf("trip not carrying its fare: %+v err=%v", got.Fare, err)
	}

	// The consumed quote cannot start a second trip.
	if _, err := svc.Start(ctx, quotes[0].ID, "rider-1"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("reused quote should fail, got %v", err)
	}
}

func TestStartRejectsUnknownQuote(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Start(context.Background(), "missing", "rider-1"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
