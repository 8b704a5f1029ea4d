// README: Cancellation-fee policy and the billing collaborator boundary.
package billing

import (
	"context"
	"time"

	"corrida/internal/types"
)

// Biller is the external wallet/billing collaborator. The negotiation
// engine decides whether a fee applies; moving money is not its job.
type Biller interface {
	HoldCancellationFee(ctx context.Context, rideID, passengerID types.ID, fee types.Money) error
}

// Policy decides the cancellation fee once a driver was already assigned.
type Policy struct {
	// GracePeriod after acceptance during which cancelling stays free.
	GracePeriod time.Duration
	// Fee charged past the grace period.
	Fee types.Money
}

// FeeFor returns the fee owed for cancelling a ride accepted at acceptedAt.
// The zero Money means no fee.
func (p Policy) FeeFor(acceptedAt, now time.Time) types.Money {
	if now.Sub(acceptedAt) <= p.GracePeriod {
		return types.Money{Currency: p.Fee.Currency}
	}
	return p.Fee
}

// NopBiller drops fee holds; used when no billing backend is configured.
type NopBiller struct{}

func (NopBiller) HoldCancellationFee(ctx context.Context, rideID, passengerID types.ID, fee types.Money) error {
	return nil
}
