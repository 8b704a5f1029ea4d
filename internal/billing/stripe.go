// README: Stripe-backed biller placing a manual-capture hold for cancellation fees.
package billing

import (
	"context"
	"strings"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"corrida/internal/types"
)

// StripeBiller holds cancellation fees as manual-capture PaymentIntents so
// the actual capture can happen in the wallet pipeline later.
type StripeBiller struct{}

func NewStripeBiller(apiKey string) *StripeBiller {
	stripe.Key = apiKey
	return &StripeBiller{}
}

func (s *StripeBiller) HoldCancellationFee(ctx context.Context, rideID, passengerID types.ID, fee types.Money) error {
	if !fee.Positive() {
		return nil
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(fee.Amount),
		Currency:      stripe.String(strings.ToLower(fee.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.AddMetadata("ride_id", string(rideID))
	params.AddMetadata("passenger_id", string(passengerID))
	params.AddMetadata("reason", "ride_cancellation_fee")
	_, err := paymentintent.New(params)
	return err
}
