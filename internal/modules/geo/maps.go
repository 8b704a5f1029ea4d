// README: Google Maps routing client used as the primary distance/ETA source.
package geo

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"corrida/internal/types"
)

// GoogleRoutes implements RouteClient on the Google Maps Directions API.
type GoogleRoutes struct {
	client *maps.Client
}

func NewGoogleRoutes(apiKey string) (*GoogleRoutes, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GoogleRoutes{client: client}, nil
}

func (g *GoogleRoutes) Route(ctx context.Context, from, to types.Point) (Leg, error) {
	req := &maps.DirectionsRequest{
		Origin:      latLng(from),
		Destination: latLng(to),
		Mode:        maps.TravelModeDriving,
	}
	routes, _, err := g.client.Directions(ctx, req)
	if err != nil {
		return Leg{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Leg{}, fmt.Errorf("%w: no route found", ErrUnavailable)
	}
	leg := routes[0].Legs[0]
	return Leg{
		DistanceKm: float64(leg.Distance.Meters) / 1000.0,
		Duration:   leg.Duration,
	}, nil
}

func latLng(p types.Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}
