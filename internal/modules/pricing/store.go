// README: Pricing store backed by PostgreSQL, with built-in defaults.
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store resolves the tariff for a vehicle class.
type Store interface {
	Rate(ctx context.Context, vehicleClass string) (Rate, error)
}

// ErrUnknownClass means the vehicle class is outside the supported set.
var ErrUnknownClass = errors.New("unknown vehicle class")

// PGStore reads tariff rows from PostgreSQL, falling back to DefaultRates
// for classes without an override row.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Rate(ctx context.Context, vehicleClass string) (Rate, error) {
	row := s.db.QueryRow(ctx, `
        SELECT vehicle_class, base_fare, per_km, stop_surcharge, currency
        FROM pricing_rates
        WHERE vehicle_class = $1`, vehicleClass)

	var r Rate
	err := row.Scan(&r.VehicleClass, &r.BaseFare, &r.PerKm, &r.StopSurcharge, &r.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		if def, ok := DefaultRates[vehicleClass]; ok {
			return def, nil
		}
		return Rate{}, ErrUnknownClass
	}
	if err != nil {
		return Rate{}, err
	}
	return r, nil
}

// StaticStore serves the built-in tariff table only. Used in tests and when
// the process runs without a database.
type StaticStore struct{}

func NewStaticStore() *StaticStore { return &StaticStore{} }

func (s *StaticStore) Rate(ctx context.Context, vehicleClass string) (Rate, error) {
	if r, ok := DefaultRates[vehicleClass]; ok {
		return r, nil
	}
	return Rate{}, ErrUnknownClass
}
