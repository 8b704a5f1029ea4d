// README: acceptance arbiter; at most one offer wins a ride.
package ride

import (
	"context"

	"corrida/internal/events"
	"corrida/internal/observability"
)

// Accept commits one offer as the winner of its ride. The pre-checks give
// precise errors for the common failures; the store commit re-applies every
// guard atomically, so when two accepts race, exactly one returns the
// updated ride and the others get ErrConflict. Accepting an already
// accepted offer again reports ErrConflict, never a second win.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Ride, error) {
	o, err := s.store.GetOffer(ctx, cmd.OfferID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	switch {
	case o.Status == OfferPending && o.Expired(now):
		return nil, ErrExpired
	case o.Status == OfferExpired:
		return nil, ErrExpired
	case o.Status != OfferPending:
		return nil, ErrConflict
	}

	r, err := s.store.GetRide(ctx, o.RideID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending && r.Status != StatusNegotiating {
		return nil, ErrConflict
	}

	rejected, applied, err := s.store.CommitAcceptance(ctx, r, o, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		observability.AcceptConflicts.Inc()
		return nil, ErrConflict
	}

	actorID := cmd.ActorID
	if actorID == "" {
		actorID = r.PassengerID
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: r.Status,
		ToStatus:   StatusAccepted,
		ActorType:  "passenger",
		ActorID:    &actorID,
		CreatedAt:  now,
	})
	observability.OffersAccepted.Inc()

	if s.bus != nil {
		s.bus.Publish(ctx, events.Event{
			RideID:        string(r.ID),
			Kind:          events.KindOfferResolved,
			OfferID:       string(o.ID),
			OfferStatus:   string(OfferAccepted),
			DriverID:      string(o.DriverID),
			PriceCentavos: o.Price.Amount,
			At:            now,
		})
		for _, id := range rejected {
			s.bus.Publish(ctx, events.Event{
				RideID:      string(r.ID),
				Kind:        events.KindOfferResolved,
				OfferID:     string(id),
				OfferStatus: string(OfferRejected),
				At:          now,
			})
		}
		s.bus.Publish(ctx, events.Event{
			RideID:        string(r.ID),
			Kind:          events.KindRideUpdated,
			RideStatus:    string(StatusAccepted),
			DriverID:      string(o.DriverID),
			PriceCentavos: o.Price.Amount,
			At:            now,
		})
	}

	return s.store.GetRide(ctx, r.ID)
}
