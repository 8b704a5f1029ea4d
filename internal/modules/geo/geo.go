// README: Pure geographic computations and the ETA estimator with routing fallback.
package geo

import (
	"context"
	"errors"
	"math"
	"time"

	"corrida/internal/types"
)

const earthRadiusKm = 6371.0

// ErrUnavailable means the routing collaborator could not answer. Callers
// absorb it by falling back to the great-circle estimate; it never reaches
// the API surface.
var ErrUnavailable = errors.New("routing service unavailable")

// DistanceKm returns the great-circle distance in kilometres between two
// points. This is the degraded-accuracy fallback used when no routing
// service answer is available, not the primary estimator.
func DistanceKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// EtaMinutes converts a distance into minutes at the assumed average city
// speed, with a floor of one minute.
func EtaMinutes(distanceKm, avgSpeedKmh float64) int {
	if avgSpeedKmh <= 0 {
		avgSpeedKmh = 30.0
	}
	min := int(distanceKm / avgSpeedKmh * 60)
	if min < 1 {
		min = 1
	}
	return min
}

// Leg is one routed segment between two points.
type Leg struct {
	DistanceKm float64
	Duration   time.Duration
}

// RouteClient answers road-network routing queries. Implementations wrap an
// external service; errors are treated as ErrUnavailable by the Estimator.
type RouteClient interface {
	Route(ctx context.Context, from, to types.Point) (Leg, error)
}

// Estimator answers distance and ETA queries, preferring the routing
// collaborator and degrading to haversine when it is absent or failing.
type Estimator struct {
	Routes      RouteClient
	AvgSpeedKmh float64
}

func (e *Estimator) DistanceKm(ctx context.Context, a, b types.Point) float64 {
	if e.Routes != nil {
		if leg, err := e.Routes.Route(ctx, a, b); err == nil {
			return leg.DistanceKm
		}
	}
	return DistanceKm(a, b)
}

func (e *Estimator) EtaMinutes(ctx context.Context, from, to types.Point) int {
	if e.Routes != nil {
		if leg, err := e.Routes.Route(ctx, from, to); err == nil {
			min := int(leg.Duration.Minutes())
			if min < 1 {
				min = 1
			}
			return min
		}
	}
	return EtaMinutes(DistanceKm(from, to), e.AvgSpeedKmh)
}
