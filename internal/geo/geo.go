package geo

import (
	"context"
	"math"

	"github.com/mmcloughlin/geohash"

	"github.com/AuraReaper/voom/internal/models"
)

// DefaultPrecision is the geohash cell size used for driver discovery.
// Seven characters is roughly a 150m cell edge, which keeps candidate sets
// small while making boundary misses rare once neighbors are included.
const DefaultPrecision = 7

// Index buckets actors into fixed-precision geohash cells. Upsert moves the
// actor to the cell for the given coordinate and returns that cell. Query
// returns the members of the given cells with no ordering guarantee; callers
// expand to neighbor cells themselves to cover boundary cases.
type Index interface {
	Upsert(ctx context.Context, actorID string, c models.Coordinate) (string, error)
	Query(ctx context.Context, cells []string) ([]string, error)
	Remove(ctx context.Context, actorID string) error
}

// Encode returns the geohash cell for a coordinate at precision chars.
func Encode(c models.Coordinate, chars uint) string {
	return geohash.EncodeWithPrecision(c.Latitude, c.Longitude, chars)
}

// Block returns the 3x3 block centered on cell: the cell plus its eight
// neighbors.
func Block(cell string) []string {
	return append(geohash.Neighbors(cell), cell)
}

// CellsWithin returns every cell reachable from center in at most rings
// neighbor steps. rings=1 is the 3x3 block, rings=2 the 5x5 block, and so
// on. Cells are deduplicated; order is unspecified.
func CellsWithin(center string, rings int) []string {
	seen := map[string]struct{}{center: {}}
	frontier := []string{center}
	for i := 0; i < rings; i++ {
		var next []string
		for _, cell := range frontier {
			for _, n := range geohash.Neighbors(cell) {
				if _, ok := seen[n]; ok {
					continue
				}
				seen[n] = struct{}{}
				next = append(next, n)
			}
		}
		frontier = next
	}
	out := make([]string, 0, len(seen))
	for cell := range seen {
		out = append(out, cell)
	}
	return out
}

// Haversine returns the great-circle distance between two coordinates in
// meters.
func Haversine(a, b models.Coordinate) float64 {
	const earthRadius = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
