// README: cancellation handler; closes the negotiation and decides the fee.
package ride

import (
	"context"
	"time"

	"corrida/internal/events"
	"corrida/internal/observability"
	"corrida/internal/types"
)

// Cancel moves the ride to cancelled, closes out any still-pending offers
// and decides the cancellation fee. A fee applies only when a driver was
// already committed and the grace period after acceptance has passed. The
// fee hold runs in the background; the cancellation itself never waits on
// the payment provider.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (types.Money, error) {
	var fee types.Money
	r, err := s.store.GetRide(ctx, cmd.RideID)
	if err != nil {
		return fee, err
	}
	if !CanTransition(r.Status, StatusCancelled) {
		return fee, ErrInvalidState
	}

	now := s.now()
	reason := cmd.Reason
	ok, err := s.store.UpdateRideStatus(ctx, r.ID, r.Status, StatusCancelled, r.StatusVersion, RideMutation{CancelReason: &reason})
	if err != nil {
		return fee, err
	}
	if !ok {
		return fee, ErrConflict
	}

	rejected, err := s.store.RejectPendingOffers(ctx, r.ID, "")
	if err != nil {
		s.logger.Warn("rejecting pending offers failed", "ride_id", r.ID, "err", err)
	}

	fee.Currency = r.PriceOffer.Currency
	if r.DriverID != nil && r.AcceptedAt != nil {
		fee = s.cancelPolicy.FeeFor(*r.AcceptedAt, now)
		if fee.Positive() {
			go s.holdFee(r, fee)
		}
	}

	actorID := &r.PassengerID
	if cmd.ActorType == "driver" {
		actorID = r.DriverID
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: r.Status,
		ToStatus:   StatusCancelled,
		ActorType:  cmd.ActorType,
		ActorID:    actorID,
		CreatedAt:  now,
	})
	observability.RidesCancelled.Inc()

	if s.bus != nil {
		for _, id := range rejected {
			s.bus.Publish(ctx, events.Event{
				RideID:      string(r.ID),
				Kind:        events.KindOfferResolved,
				OfferID:     string(id),
				OfferStatus: string(OfferRejected),
				At:          now,
			})
		}
		s.publishRide(ctx, r.ID, StatusCancelled)
	}
	return fee, nil
}

func (s *Service) holdFee(r *Ride, fee types.Money) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.biller.HoldCancellationFee(ctx, r.ID, r.PassengerID, fee); err != nil {
		s.logger.Error("cancellation fee hold failed", "ride_id", r.ID, "amount", fee.Amount, "err", err)
	}
}
