// README: Driver service; profile lookups, location updates, visibility set.
package driver

import (
	"context"

	"corrida/internal/types"
)

type Service struct {
	store    Store
	radiusKm float64
}

func NewService(store Store, radiusKm float64) *Service {
	if radiusKm <= 0 {
		radiusKm = 5.0
	}
	return &Service{store: store, radiusKm: radiusKm}
}

func (s *Service) Register(ctx context.Context, p Profile) error {
	return s.store.UpsertProfile(ctx, p)
}

func (s *Service) Profile(ctx context.Context, id types.ID) (Profile, error) {
	return s.store.Profile(ctx, id)
}

func (s *Service) UpdateLocation(ctx context.Context, id types.ID, pt types.Point) error {
	return s.store.SetPosition(ctx, id, pt)
}

func (s *Service) Position(ctx context.Context, id types.ID) (types.Point, bool, error) {
	return s.store.Position(ctx, id)
}

// EligibleDrivers is the visibility set for a pending ride: drivers within
// the search radius of the pickup whose vehicle class matches. Geofencing
// policy beyond radius+class lives with the discovery collaborator, not here.
func (s *Service) EligibleDrivers(ctx context.Context, pickup types.Point, vehicleClass string) ([]types.ID, error) {
	nearby, err := s.store.Nearby(ctx, pickup, s.radiusKm)
	if err != nil {
		return nil, err
	}
	eligible := make([]types.ID, 0, len(nearby))
	for _, id := range nearby {
		p, err := s.store.Profile(ctx, id)
		if err != nil {
			continue
		}
		if p.VehicleClass == vehicleClass {
			eligible = append(eligible, id)
		}
	}
	return eligible, nil
}
