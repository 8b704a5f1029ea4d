// README: Postgres-backed ride store; guarded updates carry the concurrency control.
package ride

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"corrida/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

var _ Store = (*PGStore)(nil)

func (s *PGStore) CreateRide(ctx context.Context, r *Ride) error {
	stops, err := json.Marshal(r.Stops)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO rides (
			id, passenger_id, driver_id, status, status_version, empty_cycles,
			pickup_address, pickup_lat, pickup_lng,
			dropoff_address, dropoff_lat, dropoff_lng, stops,
			price_offer, final_price, suggested_fare, currency,
			vehicle_class, payment_method, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20
		)`,
		string(r.ID),
		string(r.PassengerID),
		toStringPtr(r.DriverID),
		string(r.Status),
		r.StatusVersion,
		r.EmptyCycles,
		r.Pickup.Address, r.Pickup.Position.Lat, r.Pickup.Position.Lng,
		r.Dropoff.Address, r.Dropoff.Position.Lat, r.Dropoff.Position.Lng,
		stops,
		r.PriceOffer.Amount,
		toIntPtr(r.FinalPrice),
		r.SuggestedFare.Amount,
		r.PriceOffer.Currency,
		r.VehicleClass,
		r.PaymentMethod,
		r.CreatedAt,
	)
	return err
}

func (s *PGStore) GetRide(ctx context.Context, id types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, passenger_id, driver_id, status, status_version, empty_cycles,
		       pickup_address, pickup_lat, pickup_lng,
		       dropoff_address, dropoff_lat, dropoff_lng, stops,
		       price_offer, final_price, suggested_fare, currency,
		       vehicle_class, payment_method,
		       created_at, accepted_at, started_at, completed_at, cancelled_at, cancel_reason
		FROM rides
		WHERE id = $1`, string(id),
	)

	var r Ride
	var driverID sql.NullString
	var finalPrice sql.NullInt64
	var stops []byte
	var currency string
	var acceptedAt, startedAt, completedAt, cancelledAt sql.NullTime
	var cancelReason sql.NullString

	err := row.Scan(
		&r.ID, &r.PassengerID, &driverID, &r.Status, &r.StatusVersion, &r.EmptyCycles,
		&r.Pickup.Address, &r.Pickup.Position.Lat, &r.Pickup.Position.Lng,
		&r.Dropoff.Address, &r.Dropoff.Position.Lat, &r.Dropoff.Position.Lng, &stops,
		&r.PriceOffer.Amount, &finalPrice, &r.SuggestedFare.Amount, &currency,
		&r.VehicleClass, &r.PaymentMethod,
		&r.CreatedAt, &acceptedAt, &startedAt, &completedAt, &cancelledAt, &cancelReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(stops) > 0 {
		if err := json.Unmarshal(stops, &r.Stops); err != nil {
			return nil, err
		}
	}
	r.PriceOffer.Currency = currency
	r.SuggestedFare.Currency = currency
	if driverID.Valid {
		d := types.ID(driverID.String)
		r.DriverID = &d
	}
	if finalPrice.Valid {
		v := types.Money{Amount: finalPrice.Int64, Currency: currency}
		r.FinalPrice = &v
	}
	r.AcceptedAt = toTimePtr(acceptedAt)
	r.StartedAt = toTimePtr(startedAt)
	r.CompletedAt = toTimePtr(completedAt)
	r.CancelledAt = toTimePtr(cancelledAt)
	if cancelReason.Valid {
		r.CancelReason = &cancelReason.String
	}
	return &r, nil
}

func (s *PGStore) UpdateRideStatus(ctx context.Context, id types.ID, from, to Status, version int, mut RideMutation) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    status_version = status_version + 1,
		    driver_id = COALESCE($2, driver_id),
		    final_price = COALESCE($3, final_price),
		    cancel_reason = COALESCE($4, cancel_reason),
		    accepted_at = CASE WHEN $1 = 'accepted' THEN NOW() ELSE accepted_at END,
		    started_at = CASE WHEN $1 = 'in_progress' THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $5 AND status = $6 AND status_version = $7`,
		string(to),
		toStringPtr(mut.DriverID),
		toIntPtr(mut.FinalPrice),
		mut.CancelReason,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) CreateOffer(ctx context.Context, o *Offer) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO price_offers (
			id, ride_id, driver_id, price, currency, message,
			status, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(o.ID),
		string(o.RideID),
		string(o.DriverID),
		o.Price.Amount,
		o.Price.Currency,
		o.Message,
		string(o.Status),
		o.CreatedAt,
		o.ExpiresAt,
	)
	return err
}

func (s *PGStore) GetOffer(ctx context.Context, id types.ID) (*Offer, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, ride_id, driver_id, price, currency, message,
		       status, created_at, expires_at
		FROM price_offers
		WHERE id = $1`, string(id),
	)
	o, err := scanOffer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PGStore) ListOffersByRide(ctx context.Context, rideID types.ID) ([]*Offer, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, driver_id, price, currency, message,
		       status, created_at, expires_at
		FROM price_offers
		WHERE ride_id = $1
		ORDER BY created_at`, string(rideID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []*Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// CommitAcceptance runs the three guarded writes of an acceptance in one
// transaction. Any guard that matches zero rows aborts the whole commit, so
// concurrent accepts on the same ride serialize on the row locks and exactly
// one of them observes applied=true.
func (s *PGStore) CommitAcceptance(ctx context.Context, r *Ride, o *Offer, now time.Time) ([]types.ID, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE price_offers
		SET status = 'accepted'
		WHERE id = $1 AND status = 'pending' AND expires_at >= $2`,
		string(o.ID), now,
	)
	if err != nil {
		return nil, false, err
	}
	if tag.RowsAffected() != 1 {
		return nil, false, nil
	}

	tag, err = tx.Exec(ctx, `
		UPDATE rides
		SET status = 'accepted',
		    status_version = status_version + 1,
		    driver_id = $1,
		    final_price = $2,
		    accepted_at = $3
		WHERE id = $4 AND status IN ('pending','negotiating') AND status_version = $5`,
		string(o.DriverID),
		o.Price.Amount,
		now,
		string(r.ID),
		r.StatusVersion,
	)
	if err != nil {
		return nil, false, err
	}
	if tag.RowsAffected() != 1 {
		return nil, false, nil
	}

	rows, err := tx.Query(ctx, `
		UPDATE price_offers
		SET status = 'rejected'
		WHERE ride_id = $1 AND status = 'pending' AND id <> $2
		RETURNING id`,
		string(r.ID), string(o.ID),
	)
	if err != nil {
		return nil, false, err
	}
	rejected, err := collectIDs(rows)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return rejected, true, nil
}

func (s *PGStore) RejectPendingOffers(ctx context.Context, rideID types.ID, except types.ID) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE price_offers
		SET status = 'rejected'
		WHERE ride_id = $1 AND status = 'pending' AND id <> $2
		RETURNING id`,
		string(rideID), string(except),
	)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func (s *PGStore) ExpireStaleOffers(ctx context.Context, now time.Time) ([]*Offer, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE price_offers
		SET status = 'expired'
		WHERE status = 'pending' AND expires_at < $1
		RETURNING id, ride_id, driver_id, price, currency, message,
		          status, created_at, expires_at`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []*Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

func (s *PGStore) ListStalledRides(ctx context.Context, now time.Time) ([]*Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM rides r
		WHERE r.status = 'negotiating'
		  AND NOT EXISTS (
			SELECT 1 FROM price_offers o
			WHERE o.ride_id = r.id AND o.status = 'pending' AND o.expires_at >= $1
		  )`, now,
	)
	if err != nil {
		return nil, err
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}

	var rides []*Ride
	for _, id := range ids {
		r, err := s.GetRide(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rides = append(rides, r)
	}
	return rides, nil
}

func (s *PGStore) ReopenRide(ctx context.Context, id types.ID, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET status = 'pending',
		    status_version = status_version + 1,
		    empty_cycles = empty_cycles + 1
		WHERE id = $1 AND status = 'negotiating' AND status_version = $2`,
		string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) AppendEvent(ctx context.Context, ev *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ride_events (
			ride_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(ev.RideID),
		string(ev.FromStatus),
		string(ev.ToStatus),
		ev.ActorType,
		toStringPtr(ev.ActorID),
		ev.CreatedAt,
	)
	return err
}

func (s *PGStore) ListEvents(ctx context.Context, rideID types.ID) ([]*Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, from_status, to_status, actor_type, actor_id, created_at
		FROM ride_events
		WHERE ride_id = $1
		ORDER BY id`, string(rideID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var ev Event
		var actorID sql.NullString
		if err := rows.Scan(&ev.ID, &ev.RideID, &ev.FromStatus, &ev.ToStatus, &ev.ActorType, &actorID, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if actorID.Valid {
			a := types.ID(actorID.String)
			ev.ActorID = &a
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func scanOffer(row pgx.Row) (*Offer, error) {
	var o Offer
	err := row.Scan(
		&o.ID, &o.RideID, &o.DriverID,
		&o.Price.Amount, &o.Price.Currency, &o.Message,
		&o.Status, &o.CreatedAt, &o.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func collectIDs(rows pgx.Rows) ([]types.ID, error) {
	defer rows.Close()
	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIntPtr(v *types.Money) *int64 {
	if v == nil {
		return nil
	}
	n := v.Amount
	return &n
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
