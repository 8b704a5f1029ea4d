// README: cancellation-fee policy tests.
package billing

import (
	"testing"
	"time"

	"corrida/internal/types"
)

func TestPolicy_FeeFor(t *testing.T) {
	policy := Policy{GracePeriod: 2 * time.Minute, Fee: types.BRL(700)}
	accepted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if fee := policy.FeeFor(accepted, accepted.Add(90*time.Second)); fee.Positive() {
		t.Errorf("fee within grace period = %d, want 0", fee.Amount)
	}
	if fee := policy.FeeFor(accepted, accepted.Add(2*time.Minute)); fee.Positive() {
		t.Errorf("fee at grace boundary = %d, want 0", fee.Amount)
	}
	fee := policy.FeeFor(accepted, accepted.Add(5*time.Minute))
	if fee.Amount != 700 || fee.Currency != "BRL" {
		t.Errorf("fee past grace = %+v, want R$7.00", fee)
	}
}
