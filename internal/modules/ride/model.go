// README: Ride aggregate, status definitions and the negotiation state flow.
package ride

import (
	"time"

	"corrida/internal/types"
)

type Status string

const (
	StatusNone        Status = "none"
	StatusPending     Status = "pending"
	StatusNegotiating Status = "negotiating"
	StatusAccepted    Status = "accepted"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusFailed      Status = "failed"
)

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Stop is an addressed coordinate: pickup, dropoff or an intermediate stop.
type Stop struct {
	Address  string
	Position types.Point
}

// MaxStops bounds the intermediate stop list of a ride.
const MaxStops = 3

type Ride struct {
	ID          types.ID
	PassengerID types.ID
	DriverID    *types.ID

	Pickup  Stop
	Dropoff Stop
	Stops   []Stop

	// PriceOffer is the passenger's initial price proposal drivers bid
	// against. FinalPrice and DriverID are both null until an offer wins,
	// then always set together.
	PriceOffer    types.Money
	FinalPrice    *types.Money
	SuggestedFare types.Money
	VehicleClass  string
	PaymentMethod string

	Status        Status
	StatusVersion int
	// EmptyCycles counts negotiation rounds in which every offer expired.
	EmptyCycles int

	CreatedAt    time.Time
	AcceptedAt   *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelReason *string
}

// Event is one audit-trail entry for a ride's status history.
type Event struct {
	ID         int64
	RideID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the negotiation state flow (diagram) as code.
// Cancellation exits every pre-terminal state except in_progress, which has
// no in-ride cancellation policy defined. The negotiating → pending edge is
// the re-open path after a fully-expired round.
var AllowedTransitions = map[Status][]Status{
	StatusPending:     {StatusNegotiating, StatusAccepted, StatusCancelled, StatusFailed},
	StatusNegotiating: {StatusAccepted, StatusPending, StatusCancelled, StatusFailed},
	StatusAccepted:    {StatusInProgress, StatusCancelled},
	StatusInProgress:  {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
