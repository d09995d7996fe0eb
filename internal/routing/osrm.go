package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/AuraReaper/voom/internal/models"
)

// OSRMClient fetches routes from an OSRM HTTP server.
type OSRMClient struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMClient(endpoint string) *OSRMClient {
	return &OSRMClient{Endpoint: endpoint, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (o *OSRMClient) GetRoute(ctx context.Context, pickup, destination models.Coordinate) (*models.Route, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		o.Endpoint,
		pickup.Longitude, pickup.Latitude,
		destination.Longitude, destination.Latitude,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm status %d", resp.StatusCode)
	}

	var out struct {
		Code   string `json:"code"`
		Routes []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("osrm decode: %w", err)
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return nil, fmt.Errorf("osrm no route: %s", out.Code)
	}

	r := out.Routes[0]
	geometry := make([]models.Coordinate, len(r.Geometry.Coordinates))
	for i, pair := range r.Geometry.Coordinates {
		// GeoJSON orders lon,lat.
		geometry[i] = models.Coordinate{Latitude: pair[1], Longitude: pair[0]}
	}
	return &models.Route{Geometry: geometry, Distance: r.Distance, Duration: r.Duration}, nil
}
