// README: persistence contract for rides, offers and the audit trail.
package ride

import (
	"context"
	"time"

	"corrida/internal/types"
)

// RideMutation carries the optional column writes that accompany a status
// transition. Nil fields are left untouched.
type RideMutation struct {
	DriverID     *types.ID
	FinalPrice   *types.Money
	CancelReason *string
}

// Store is the persistence boundary of the negotiation engine. Guarded
// writes (UpdateRideStatus, CommitAcceptance, ReopenRide) apply only when
// the stored row still matches the expected status and version; they report
// applied=false instead of an error when another writer got there first.
type Store interface {
	CreateRide(ctx context.Context, r *Ride) error
	GetRide(ctx context.Context, id types.ID) (*Ride, error)

	// UpdateRideStatus performs a compare-and-swap transition from → to,
	// stamping the matching timestamp column and bumping StatusVersion.
	UpdateRideStatus(ctx context.Context, id types.ID, from, to Status, version int, mut RideMutation) (bool, error)

	CreateOffer(ctx context.Context, o *Offer) error
	GetOffer(ctx context.Context, id types.ID) (*Offer, error)
	ListOffersByRide(ctx context.Context, rideID types.ID) ([]*Offer, error)

	// CommitAcceptance atomically accepts the offer, moves its ride to
	// accepted with the winning driver and price, and rejects every other
	// pending offer on the ride. All guards are re-checked inside the
	// commit so at most one concurrent caller observes applied=true.
	CommitAcceptance(ctx context.Context, r *Ride, o *Offer, now time.Time) (rejected []types.ID, applied bool, err error)

	// RejectPendingOffers closes out the remaining pending offers of a
	// ride, optionally sparing one (the winner). Pass "" to reject all.
	RejectPendingOffers(ctx context.Context, rideID types.ID, except types.ID) ([]types.ID, error)

	// ExpireStaleOffers flips every pending offer whose deadline has
	// passed to expired and returns them.
	ExpireStaleOffers(ctx context.Context, now time.Time) ([]*Offer, error)

	// ListStalledRides returns negotiating rides that no longer have any
	// live pending offer, i.e. rides whose negotiation round fully expired.
	ListStalledRides(ctx context.Context, now time.Time) ([]*Ride, error)

	// ReopenRide moves a stalled ride back to pending and increments its
	// empty-cycle counter.
	ReopenRide(ctx context.Context, id types.ID, version int) (bool, error)

	AppendEvent(ctx context.Context, ev *Event) error
	ListEvents(ctx context.Context, rideID types.ID) ([]*Event, error)
}
