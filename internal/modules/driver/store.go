// README: Driver store backed by Redis GEO for positions and PostgreSQL for profiles.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"corrida/internal/types"
)

const (
	driverGeoKey  = "drivers:geo"
	metaKeyPrefix = "drivers:meta:%s"
	// positions are stale after this long without an update
	positionTTL = 5 * time.Minute
)

var ErrNotFound = errors.New("driver not found")

// Store keeps driver profiles and last known positions.
type Store interface {
	UpsertProfile(ctx context.Context, p Profile) error
	Profile(ctx context.Context, id types.ID) (Profile, error)
	SetPosition(ctx context.Context, id types.ID, pt types.Point) error
	// Position returns the last known location and whether one is known.
	Position(ctx context.Context, id types.ID) (types.Point, bool, error)
	// Nearby returns driver ids within radiusKm of p, closest first.
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
}

// RedisStore implements positions on Redis GEO sets and profiles on
// PostgreSQL metadata rows.
type RedisStore struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewRedisStore(db *pgxpool.Pool, rdb *redis.Client) *RedisStore {
	return &RedisStore{db: db, redis: rdb}
}

func (s *RedisStore) UpsertProfile(ctx context.Context, p Profile) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO drivers (id, name, rating, vehicle_class, vehicle_model, vehicle_plate)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            rating = EXCLUDED.rating,
            vehicle_class = EXCLUDED.vehicle_class,
            vehicle_model = EXCLUDED.vehicle_model,
            vehicle_plate = EXCLUDED.vehicle_plate`,
		string(p.ID), p.Name, p.Rating, p.VehicleClass, p.VehicleModel, p.VehiclePlate)
	return err
}

func (s *RedisStore) Profile(ctx context.Context, id types.ID) (Profile, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, name, rating, vehicle_class, vehicle_model, vehicle_plate
        FROM drivers WHERE id = $1`, string(id))
	var p Profile
	err := row.Scan(&p.ID, &p.Name, &p.Rating, &p.VehicleClass, &p.VehicleModel, &p.VehiclePlate)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *RedisStore) SetPosition(ctx context.Context, id types.ID, pt types.Point) error {
	pipe := s.redis.Pipeline()
	pipe.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pt.Lng,
		Latitude:  pt.Lat,
	})
	pipe.Set(ctx, metaKey(id), strconv.FormatInt(time.Now().Unix(), 10), positionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Position(ctx context.Context, id types.ID) (types.Point, bool, error) {
	// the meta key expiring means the position is stale
	if _, err := s.redis.Get(ctx, metaKey(id)).Result(); err == redis.Nil {
		return types.Point{}, false, nil
	} else if err != nil {
		return types.Point{}, false, err
	}
	pos, err := s.redis.GeoPos(ctx, driverGeoKey, string(id)).Result()
	if err != nil {
		return types.Point{}, false, err
	}
	if len(pos) == 0 || pos[0] == nil {
		return types.Point{}, false, nil
	}
	return types.Point{Lat: pos[0].Latitude, Lng: pos[0].Longitude}, true, nil
}

func (s *RedisStore) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

func metaKey(id types.ID) string {
	return fmt.Sprintf(metaKeyPrefix, string(id))
}
