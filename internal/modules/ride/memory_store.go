// README: in-memory ride store with the same guard semantics as Postgres.
package ride

import (
	"context"
	"sync"
	"time"

	"corrida/internal/types"
)

// MemoryStore keeps rides and offers in maps under one mutex. The guarded
// writes check status and version exactly like the SQL store does, so the
// concurrency behavior under test matches production.
type MemoryStore struct {
	mu     sync.Mutex
	rides  map[types.ID]*Ride
	offers map[types.ID]*Offer
	events []*Event
	nextEv int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:  make(map[types.ID]*Ride),
		offers: make(map[types.ID]*Offer),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) CreateRide(_ context.Context, r *Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rides[r.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRide(_ context.Context, id types.ID) (*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) UpdateRideStatus(_ context.Context, id types.ID, from, to Status, version int, mut RideMutation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok || r.Status != from || r.StatusVersion != version {
		return false, nil
	}
	now := time.Now()
	r.Status = to
	r.StatusVersion++
	if mut.DriverID != nil {
		r.DriverID = mut.DriverID
	}
	if mut.FinalPrice != nil {
		r.FinalPrice = mut.FinalPrice
	}
	if mut.CancelReason != nil {
		r.CancelReason = mut.CancelReason
	}
	stampTransition(r, to, now)
	return true, nil
}

func (s *MemoryStore) CreateOffer(_ context.Context, o *Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.offers[o.ID] = &cp
	return nil
}

func (s *MemoryStore) GetOffer(_ context.Context, id types.ID) (*Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) ListOffersByRide(_ context.Context, rideID types.ID) ([]*Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var offers []*Offer
	for _, o := range s.offers {
		if o.RideID == rideID {
			cp := *o
			offers = append(offers, &cp)
		}
	}
	sortByCreatedAt(offers)
	return offers, nil
}

func (s *MemoryStore) CommitAcceptance(_ context.Context, r *Ride, o *Offer, now time.Time) ([]types.ID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, ok := s.offers[o.ID]
	if !ok || offer.Status != OfferPending || offer.Expired(now) {
		return nil, false, nil
	}
	ride, ok := s.rides[r.ID]
	if !ok || ride.StatusVersion != r.StatusVersion {
		return nil, false, nil
	}
	if ride.Status != StatusPending && ride.Status != StatusNegotiating {
		return nil, false, nil
	}

	offer.Status = OfferAccepted
	driverID := offer.DriverID
	price := offer.Price
	ride.Status = StatusAccepted
	ride.StatusVersion++
	ride.DriverID = &driverID
	ride.FinalPrice = &price
	at := now
	ride.AcceptedAt = &at

	var rejected []types.ID
	for _, other := range s.offers {
		if other.RideID == r.ID && other.ID != o.ID && other.Status == OfferPending {
			other.Status = OfferRejected
			rejected = append(rejected, other.ID)
		}
	}
	return rejected, true, nil
}

func (s *MemoryStore) RejectPendingOffers(_ context.Context, rideID types.ID, except types.ID) ([]types.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rejected []types.ID
	for _, o := range s.offers {
		if o.RideID == rideID && o.ID != except && o.Status == OfferPending {
			o.Status = OfferRejected
			rejected = append(rejected, o.ID)
		}
	}
	return rejected, nil
}

func (s *MemoryStore) ExpireStaleOffers(_ context.Context, now time.Time) ([]*Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []*Offer
	for _, o := range s.offers {
		if o.Status == OfferPending && o.Expired(now) {
			o.Status = OfferExpired
			cp := *o
			expired = append(expired, &cp)
		}
	}
	sortByCreatedAt(expired)
	return expired, nil
}

func (s *MemoryStore) ListStalledRides(_ context.Context, now time.Time) ([]*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := make(map[types.ID]bool)
	for _, o := range s.offers {
		if o.Status == OfferPending && !o.Expired(now) {
			live[o.RideID] = true
		}
	}
	var stalled []*Ride
	for _, r := range s.rides {
		if r.Status == StatusNegotiating && !live[r.ID] {
			cp := *r
			stalled = append(stalled, &cp)
		}
	}
	return stalled, nil
}

func (s *MemoryStore) ReopenRide(_ context.Context, id types.ID, version int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok || r.Status != StatusNegotiating || r.StatusVersion != version {
		return false, nil
	}
	r.Status = StatusPending
	r.StatusVersion++
	r.EmptyCycles++
	return true, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, ev *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEv++
	cp := *ev
	cp.ID = s.nextEv
	s.events = append(s.events, &cp)
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, rideID types.ID) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []*Event
	for _, ev := range s.events {
		if ev.RideID == rideID {
			cp := *ev
			events = append(events, &cp)
		}
	}
	return events, nil
}

func stampTransition(r *Ride, to Status, now time.Time) {
	switch to {
	case StatusAccepted:
		t := now
		r.AcceptedAt = &t
	case StatusInProgress:
		t := now
		r.StartedAt = &t
	case StatusCompleted:
		t := now
		r.CompletedAt = &t
	case StatusCancelled:
		t := now
		r.CancelledAt = &t
	}
}

func sortByCreatedAt(offers []*Offer) {
	for i := 1; i < len(offers); i++ {
		for j := i; j > 0 && offers[j].CreatedAt.Before(offers[j-1].CreatedAt); j-- {
			offers[j], offers[j-1] = offers[j-1], offers[j]
		}
	}
}
