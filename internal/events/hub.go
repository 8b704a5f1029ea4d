// README: In-process fan-out hub; per-ride ordered delivery to passengers, drivers and fleet monitors.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"corrida/internal/observability"
)

const subscriberBuffer = 64

// Sink receives every published event, best effort. Used to bridge events
// out of the process (kafka topic for fleet analytics). Sinks are called
// outside the sequencing lock, so delivery order is not the hub's per-ride
// order; consumers that care must reorder by Seq.
type Sink interface {
	Write(ctx context.Context, ev Event) error
}

// Subscription is one observer's ordered event stream. Close it when done;
// the channel is closed by the hub afterwards.
type Subscription struct {
	ch     chan Event
	cancel func()
	once   sync.Once
}

func (s *Subscription) C() <-chan Event { return s.ch }

func (s *Subscription) Close() { s.once.Do(s.cancel) }

// Hub is the single authoritative event source for ride negotiations. All
// observers subscribe here; polling elsewhere is a degraded fallback, never
// a parallel truth.
type Hub struct {
	mu       sync.Mutex
	seq      map[string]uint64
	rideSubs map[string]map[chan Event]struct{}
	sessions map[string]map[chan Event]struct{} // driver sessions by driver id
	monitors map[chan Event]struct{}
	sinks    []Sink
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger, sinks ...Sink) *Hub {
	return &Hub{
		seq:      make(map[string]uint64),
		rideSubs: make(map[string]map[chan Event]struct{}),
		sessions: make(map[string]map[chan Event]struct{}),
		monitors: make(map[chan Event]struct{}),
		sinks:    sinks,
		logger:   logger,
	}
}

// SubscribeRide observes one ride's negotiation stream.
func (h *Hub) SubscribeRide(rideID string) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.rideSubs[rideID] == nil {
		h.rideSubs[rideID] = make(map[chan Event]struct{})
	}
	h.rideSubs[rideID][ch] = struct{}{}
	h.mu.Unlock()

	return &Subscription{ch: ch, cancel: func() {
		h.mu.Lock()
		if subs, ok := h.rideSubs[rideID]; ok {
			if _, live := subs[ch]; live {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.rideSubs, rideID)
			}
		}
		h.mu.Unlock()
	}}
}

// SubscribeDriver registers a driver session; it receives ride_requested
// notifications addressed to that driver.
func (h *Hub) SubscribeDriver(driverID string) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.sessions[driverID] == nil {
		h.sessions[driverID] = make(map[chan Event]struct{})
	}
	h.sessions[driverID][ch] = struct{}{}
	h.mu.Unlock()

	return &Subscription{ch: ch, cancel: func() {
		h.mu.Lock()
		if subs, ok := h.sessions[driverID]; ok {
			if _, live := subs[ch]; live {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.sessions, driverID)
			}
		}
		h.mu.Unlock()
	}}
}

// SubscribeFleet observes every ride's events (monitoring consoles).
func (h *Hub) SubscribeFleet() *Subscription {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.monitors[ch] = struct{}{}
	h.mu.Unlock()

	return &Subscription{ch: ch, cancel: func() {
		h.mu.Lock()
		if _, live := h.monitors[ch]; live {
			delete(h.monitors, ch)
			close(ch)
		}
		h.mu.Unlock()
	}}
}

// Publish stamps the event with the ride's next sequence number and delivers
// it to the ride's observers, the fleet monitors and the sinks. Sequencing
// and delivery happen under one lock, so observers of a ride see events in
// commit order.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	h.mu.Lock()
	h.seq[ev.RideID]++
	ev.Seq = h.seq[ev.RideID]
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	for ch := range h.rideSubs[ev.RideID] {
		h.deliver(ch, ev)
	}
	for ch := range h.monitors {
		h.deliver(ch, ev)
	}
	h.mu.Unlock()

	observability.EventsPublished.WithLabelValues(string(ev.Kind)).Inc()
	for _, sink := range h.sinks {
		if err := sink.Write(ctx, ev); err != nil && h.logger != nil {
			h.logger.Warn("event sink write failed", "ride_id", ev.RideID, "kind", ev.Kind, "error", err)
		}
	}
}

// NotifyDrivers delivers the event to the named driver sessions (and the
// fleet monitors), for events addressed to drivers rather than to a ride's
// observers, such as ride_requested.
func (h *Hub) NotifyDrivers(ctx context.Context, driverIDs []string, ev Event) {
	h.mu.Lock()
	h.seq[ev.RideID]++
	ev.Seq = h.seq[ev.RideID]
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	for _, id := range driverIDs {
		for ch := range h.sessions[id] {
			h.deliver(ch, ev)
		}
	}
	for ch := range h.monitors {
		h.deliver(ch, ev)
	}
	h.mu.Unlock()

	observability.EventsPublished.WithLabelValues(string(ev.Kind)).Inc()
	for _, sink := range h.sinks {
		if err := sink.Write(ctx, ev); err != nil && h.logger != nil {
			h.logger.Warn("event sink write failed", "ride_id", ev.RideID, "kind", ev.Kind, "error", err)
		}
	}
}

// deliver is non-blocking: a subscriber that cannot keep up loses events and
// must re-read canonical state on reconnect. Holding h.mu here is what keeps
// per-ride ordering.
func (h *Hub) deliver(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
		if h.logger != nil {
			h.logger.Warn("event dropped for slow subscriber", "ride_id", ev.RideID, "seq", ev.Seq)
		}
	}
}
