// README: Pricing service computes suggested fares.
package pricing

import (
	"context"
	"math"

	"corrida/internal/types"
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// SuggestedFare computes base + perKm*distance + stops*surcharge for the
// class, in centavos. Returns ErrUnknownClass for classes outside the
// supported set.
func (s *Service) SuggestedFare(ctx context.Context, vehicleClass string, distanceKm float64, stopCount int) (types.Money, error) {
	rate, err := s.store.Rate(ctx, vehicleClass)
	if err != nil {
		return types.Money{}, err
	}
	amount := rate.BaseFare +
		int64(math.Round(float64(rate.PerKm)*distanceKm)) +
		int64(stopCount)*rate.StopSurcharge
	return types.Money{Amount: amount, Currency: rate.Currency}, nil
}
