package trip

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/AuraReaper/voom/internal/models"
)

// RouteSource is the external routing collaborator: given a pickup and a
// destination it returns a priced path.
type RouteSource interface {
	GetRoute(ctx context.Context, pickup, destination models.Coordinate) (*models.Route, error)
}

// Service is the synchronous preview/start surface consumed by the HTTP API.
// Preview issues fare quotes; Start consumes one and creates the trip.
type Service struct {
	routes    RouteSource
	fares     *FareStore
	lifecycle *Lifecycle
	pricing   PricingConfig
	logger    *slog.Logger

	// OnTripRequested is wired to the matching coordinator; it fires after a
	// trip enters the requested state.
	OnTripRequested func(tripID string)
}

func NewService(routes RouteSource, fares *FareStore, lifecycle *Lifecycle, pricing PricingConfig, logger *slog.Logger) *Service {
	return &Service{
		routes:    routes,
		fares:     fares,
		lifecycle: lifecycle,
		pricing:   pricing,
		logger:    logger,
	}
}

// Preview fetches the route and quotes one fare per package tier. The quotes
// are held until consumed or expired.
func (s *Service) Preview(ctx context.Context, userID string, pickup, destination models.Coordinate) (*models.Route, []*models.RideFare, error) {
	if userID == "" {
		return nil, nil, fmt.Errorf("%w: missing user id", ErrInvalidRequest)
	}
	route, err := s.routes.GetRoute(ctx, pickup, destination)
	if err != nil {
		return nil, nil, fmt.Errorf("route lookup: %w", err)
	}

	fares := estimateFares(s.pricing, route)
	for _, fare := range fares {
		fare.ID = uuid.NewString()
		fare.UserID = userID
		fare.Route = route
		s.fares.Put(fare)
	}
	s.logger.Info("trip previewed", "user_id", userID, "fares", len(fares), "distance_m", route.Distance)
	return route, fares, nil
}

// Start consumes a previewed fare and creates the trip, then hands it to the
// matching coordinator.
func (s *Service) Start(ctx context.Context, fareID, userID string) (models.Trip, error) {
	fare, err := s.fares.Take(fareID, userID)
	if err != nil {
		return models.Trip{}, err
	}
	if fare.Route == nil || len(fare.Route.Geometry) == 0 {
		return models.Trip{}, fmt.Errorf("%w: fare %q has no route", ErrInvalidRequest, fareID)
	}

	pickup := fare.Route.Geometry[0]
	destination := fare.Route.Geometry[len(fare.Route.Geometry)-1]
	t, err := s.lifecycle.Create(ctx, fare, pickup, destination)
	if err != nil {
		return models.Trip{}, err
	}
	s.logger.Info("trip started", "trip_id", t.ID, "user_id", userID, "package", fare.PackageSlug)

	if s.OnTripRequested != nil {
		s.OnTripRequested(t.ID)
	}
	return t, nil
}
