// README: Change-notification event model for the negotiation fan-out.
package events

import "time"

type Kind string

const (
	// KindRideRequested is delivered to eligible driver sessions when a new
	// ride opens for offers.
	KindRideRequested Kind = "ride_requested"
	// KindOfferCreated is delivered to the ride's observers when a driver
	// submits a price offer.
	KindOfferCreated Kind = "offer_created"
	// KindRideUpdated is delivered on every ride status change.
	KindRideUpdated Kind = "ride_updated"
	// KindOfferResolved is delivered when an offer reaches a terminal state
	// (accepted, rejected or expired).
	KindOfferResolved Kind = "offer_resolved"
)

// Event is one change notification. Seq is a per-ride sequence number:
// observers of the same ride see events in the order they were committed.
// Delivery is at-least-once; consumers must be idempotent on duplicates.
type Event struct {
	Seq           uint64    `json:"seq"`
	RideID        string    `json:"ride_id"`
	Kind          Kind      `json:"kind"`
	RideStatus    string    `json:"ride_status,omitempty"`
	OfferID       string    `json:"offer_id,omitempty"`
	OfferStatus   string    `json:"offer_status,omitempty"`
	DriverID      string    `json:"driver_id,omitempty"`
	PriceCentavos int64     `json:"price_centavos,omitempty"`
	At            time.Time `json:"at"`
}
