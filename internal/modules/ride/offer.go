// README: price offer entity and its lifecycle states.
package ride

import (
	"time"

	"corrida/internal/types"
)

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
	OfferExpired  OfferStatus = "expired"
)

// Offer is one driver's bid on a ride. Offers are immutable after creation
// except for the status field; a driver revising their price submits a new
// offer instead.
type Offer struct {
	ID       types.ID
	RideID   types.ID
	DriverID types.ID

	Price   types.Money
	Message string

	Status OfferStatus

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the offer's acceptance deadline has passed.
// A pending offer past its deadline is treated as expired even before the
// sweeper has physically flipped its status.
func (o *Offer) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Active reports whether the offer can still be accepted at the given time.
func (o *Offer) Active(now time.Time) bool {
	return o.Status == OfferPending && !o.Expired(now)
}
