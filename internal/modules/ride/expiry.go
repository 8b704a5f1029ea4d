// README: expiry sweeper; retires stale offers and re-opens or fails stalled rides.
package ride

import (
	"context"
	"time"

	"corrida/internal/events"
	"corrida/internal/observability"
)

// RunExpirySweeper periodically retires offers past their deadline. The
// sweep is the physical cleanup; acceptance independently re-checks the
// deadline, so a stale offer can never win between two sweeps.
func (s *Service) RunExpirySweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx, s.now()); err != nil {
				s.logger.Error("expiry sweep failed", "err", err)
			}
		}
	}
}

// SweepOnce runs one sweep at the given instant. When every offer of a
// negotiating ride has expired the ride returns to pending for a fresh
// round; after too many consecutive empty rounds it fails instead.
func (s *Service) SweepOnce(ctx context.Context, now time.Time) error {
	expired, err := s.store.ExpireStaleOffers(ctx, now)
	if err != nil {
		return err
	}
	for _, o := range expired {
		observability.OffersExpired.Inc()
		if s.bus != nil {
			s.bus.Publish(ctx, events.Event{
				RideID:      string(o.RideID),
				Kind:        events.KindOfferResolved,
				OfferID:     string(o.ID),
				OfferStatus: string(OfferExpired),
				DriverID:    string(o.DriverID),
				At:          now,
			})
		}
	}

	stalled, err := s.store.ListStalledRides(ctx, now)
	if err != nil {
		return err
	}
	for _, r := range stalled {
		if r.EmptyCycles+1 >= s.cfg.MaxEmptyCycles {
			s.failRide(ctx, r, now)
			continue
		}
		ok, err := s.store.ReopenRide(ctx, r.ID, r.StatusVersion)
		if err != nil {
			return err
		}
		if !ok {
			// Lost to a concurrent accept or cancel; nothing to re-open.
			continue
		}
		_ = s.store.AppendEvent(ctx, &Event{
			RideID:     r.ID,
			FromStatus: StatusNegotiating,
			ToStatus:   StatusPending,
			ActorType:  "system",
			CreatedAt:  now,
		})
		s.publishRide(ctx, r.ID, StatusPending)
		s.logger.Info("negotiation round expired, ride re-opened",
			"ride_id", r.ID, "empty_cycles", r.EmptyCycles+1)
	}
	return nil
}

func (s *Service) failRide(ctx context.Context, r *Ride, now time.Time) {
	ok, err := s.store.UpdateRideStatus(ctx, r.ID, r.Status, StatusFailed, r.StatusVersion, RideMutation{})
	if err != nil {
		s.logger.Error("failing stalled ride", "ride_id", r.ID, "err", err)
		return
	}
	if !ok {
		return
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: r.Status,
		ToStatus:   StatusFailed,
		ActorType:  "system",
		CreatedAt:  now,
	})
	observability.RidesFailed.Inc()
	s.publishRide(ctx, r.ID, StatusFailed)
	s.logger.Info("ride failed after repeated empty negotiation rounds",
		"ride_id", r.ID, "empty_cycles", r.EmptyCycles)
}
