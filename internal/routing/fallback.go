package routing

import (
	"context"
	"log/slog"

	"github.com/AuraReaper/voom/internal/geo"
	"github.com/AuraReaper/voom/internal/models"
)

// StraightLine estimates routes without an external engine: geometry is the
// two endpoints, distance is the haversine, duration assumes a fixed city
// speed. Used standalone in tests and local runs, and as the fallback when
// OSRM is unreachable.
type StraightLine struct {
	SpeedMps float64
}

func (s StraightLine) GetRoute(_ context.Context, pickup, destination models.Coordinate) (*models.Route, error) {
	speed := s.SpeedMps
	if speed <= 0 {
		speed = 8.0 // ~29 km/h city average
	}
	distance := geo.Haversine(pickup, destination)
	return &models.Route{
		Geometry: []models.Coordinate{pickup, destination},
		Distance: distance,
		Duration: distance / speed,
	}, nil
}

// Resilient tries the primary source and falls back on error.
type Resilient struct {
	Primary  interface {
		GetRoute(ctx context.Context, pickup, destination models.Coordinate) (*models.Route, error)
	}
	Fallback StraightLine
	Logger   *slog.Logger
}

func (r Resilient) GetRoute(ctx context.Context, pickup, destination models.Coordinate) (*models.Route, error) {
	route, err := r.Primary.GetRoute(ctx, pickup, destination)
	if err == nil {
		return route, nil
	}
	if r.Logger != nil {
		r.Logger.Warn("routing engine unavailable, using straight-line estimate", "error", err)
	}
	return r.Fallback.GetRoute(ctx, pickup, destination)
}
