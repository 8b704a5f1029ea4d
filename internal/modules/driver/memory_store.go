// README: In-memory driver store for tests and database-less runs.
package driver

import (
	"context"
	"sync"

	"corrida/internal/modules/geo"
	"corrida/internal/types"
)

type MemoryStore struct {
	mu        sync.RWMutex
	profiles  map[types.ID]Profile
	positions map[types.ID]types.Point
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:  make(map[types.ID]Profile),
		positions: make(map[types.ID]types.Point),
	}
}

func (s *MemoryStore) UpsertProfile(ctx context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return nil
}

func (s *MemoryStore) Profile(ctx context.Context, id types.ID) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) SetPosition(ctx context.Context, id types.ID, pt types.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[id] = pt
	return nil
}

func (s *MemoryStore) Position(ctx context.Context, id types.ID) (types.Point, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pt, ok := s.positions[id]
	return pt, ok, nil
}

func (s *MemoryStore) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type candidate struct {
		id   types.ID
		dist float64
	}
	within := make([]candidate, 0, len(s.positions))
	for id, pt := range s.positions {
		if d := geo.DistanceKm(p, pt); d <= radiusKm {
			within = append(within, candidate{id: id, dist: d})
		}
	}
	sortByDistance(within, func(c candidate) float64 { return c.dist })
	ids := make([]types.ID, len(within))
	for i, c := range within {
		ids[i] = c.id
	}
	return ids, nil
}

// insertion sort, fine for small candidate sets
func sortByDistance[T any](items []T, dist func(T) float64) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && dist(items[j]) > dist(key) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
