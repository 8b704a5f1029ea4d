// README: Ride service implements the negotiation flow and persistence.
package ride

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"corrida/internal/billing"
	"corrida/internal/config"
	"corrida/internal/events"
	"corrida/internal/modules/driver"
	"corrida/internal/modules/pricing"
	"corrida/internal/observability"
	"corrida/internal/types"
)

type Pricing interface {
	SuggestedFare(ctx context.Context, vehicleClass string, distanceKm float64, stops int) (types.Money, error)
}

type Drivers interface {
	Profile(ctx context.Context, id types.ID) (driver.Profile, error)
	Position(ctx context.Context, id types.ID) (types.Point, bool, error)
	EligibleDrivers(ctx context.Context, pickup types.Point, vehicleClass string) ([]types.ID, error)
}

type Estimator interface {
	DistanceKm(ctx context.Context, a, b types.Point) float64
	EtaMinutes(ctx context.Context, from, to types.Point) int
}

type Bus interface {
	Publish(ctx context.Context, ev events.Event)
	NotifyDrivers(ctx context.Context, driverIDs []string, ev events.Event)
}

var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("state conflict")
	ErrExpired      = errors.New("offer expired")
)

// Deps wires the service to its collaborators. Store is required; every
// other field may be nil and the corresponding side effect is skipped.
type Deps struct {
	Store        Store
	Pricing      Pricing
	Drivers      Drivers
	Estimator    Estimator
	Bus          Bus
	Biller       billing.Biller
	CancelPolicy billing.Policy
	Negotiation  config.NegotiationConfig
	Logger       *slog.Logger
}

type Service struct {
	store        Store
	pricing      Pricing
	drivers      Drivers
	estimator    Estimator
	bus          Bus
	biller       billing.Biller
	cancelPolicy billing.Policy
	cfg          config.NegotiationConfig
	logger       *slog.Logger

	// now is swapped out by deadline tests.
	now func() time.Time
}

func NewService(d Deps) *Service {
	if d.Negotiation.OfferTTL <= 0 {
		d.Negotiation.OfferTTL = 2 * time.Minute
	}
	if d.Negotiation.SweepInterval <= 0 {
		d.Negotiation.SweepInterval = 10 * time.Second
	}
	if d.Negotiation.MaxEmptyCycles <= 0 {
		d.Negotiation.MaxEmptyCycles = 3
	}
	if d.Biller == nil {
		d.Biller = billing.NopBiller{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		store:        d.Store,
		pricing:      d.Pricing,
		drivers:      d.Drivers,
		estimator:    d.Estimator,
		bus:          d.Bus,
		biller:       d.Biller,
		cancelPolicy: d.CancelPolicy,
		cfg:          d.Negotiation,
		logger:       d.Logger,
		now:          time.Now,
	}
}

type CreateCommand struct {
	PassengerID   types.ID
	Pickup        Stop
	Dropoff       Stop
	Stops         []Stop
	PriceOffer    types.Money
	VehicleClass  string
	PaymentMethod string
}

type SubmitOfferCommand struct {
	RideID   types.ID
	DriverID types.ID
	Price    types.Money
	Message  string
}

type AcceptCommand struct {
	OfferID types.ID
	ActorID types.ID
}

type StartCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type CompleteCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type CancelCommand struct {
	RideID    types.ID
	ActorType string
	Reason    string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Ride, error) {
	if cmd.PassengerID == "" || cmd.VehicleClass == "" {
		return nil, ErrBadRequest
	}
	if cmd.Pickup.Position.IsZero() || cmd.Dropoff.Position.IsZero() {
		return nil, ErrBadRequest
	}
	if len(cmd.Stops) > MaxStops {
		return nil, ErrBadRequest
	}
	for _, st := range cmd.Stops {
		if st.Position.IsZero() {
			return nil, ErrBadRequest
		}
	}
	if !cmd.PriceOffer.Positive() {
		return nil, ErrBadRequest
	}
	if !pricing.Supported(cmd.VehicleClass) {
		return nil, ErrBadRequest
	}

	now := s.now()
	// The fare suggestion is advisory; the class check above is not.
	suggested := types.Money{Currency: cmd.PriceOffer.Currency}
	if s.pricing != nil && s.estimator != nil {
		m, err := s.pricing.SuggestedFare(ctx, cmd.VehicleClass, s.routeDistanceKm(ctx, cmd), len(cmd.Stops))
		switch {
		case err == nil:
			suggested = m
		case errors.Is(err, pricing.ErrUnknownClass):
			return nil, ErrBadRequest
		default:
			s.logger.Warn("fare suggestion failed", "vehicle_class", cmd.VehicleClass, "err", err)
		}
	}

	r := &Ride{
		ID:            newID(),
		PassengerID:   cmd.PassengerID,
		Status:        StatusPending,
		StatusVersion: 0,
		Pickup:        cmd.Pickup,
		Dropoff:       cmd.Dropoff,
		Stops:         cmd.Stops,
		PriceOffer:    cmd.PriceOffer,
		SuggestedFare: suggested,
		VehicleClass:  cmd.VehicleClass,
		PaymentMethod: cmd.PaymentMethod,
		CreatedAt:     now,
	}
	if err := s.store.CreateRide(ctx, r); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorType:  "passenger",
		ActorID:    &cmd.PassengerID,
		CreatedAt:  now,
	})

	s.broadcastRequest(ctx, r)
	return r, nil
}

// broadcastRequest pushes the new request to every eligible nearby driver.
// Failures here never fail the create; drivers can still discover the ride
// by polling.
func (s *Service) broadcastRequest(ctx context.Context, r *Ride) {
	if s.drivers == nil || s.bus == nil {
		return
	}
	ids, err := s.drivers.EligibleDrivers(ctx, r.Pickup.Position, r.VehicleClass)
	if err != nil {
		s.logger.Warn("eligible driver lookup failed", "ride_id", r.ID, "err", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	sessionIDs := make([]string, len(ids))
	for i, id := range ids {
		sessionIDs[i] = string(id)
	}
	s.bus.NotifyDrivers(ctx, sessionIDs, events.Event{
		RideID:        string(r.ID),
		Kind:          events.KindRideRequested,
		RideStatus:    string(r.Status),
		PriceCentavos: r.PriceOffer.Amount,
		At:            s.now(),
	})
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.GetRide(ctx, id)
}

func (s *Service) Events(ctx context.Context, id types.ID) ([]*Event, error) {
	if _, err := s.store.GetRide(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, id)
}

func (s *Service) SubmitOffer(ctx context.Context, cmd SubmitOfferCommand) (*Offer, error) {
	if cmd.DriverID == "" || !cmd.Price.Positive() {
		return nil, ErrBadRequest
	}
	r, err := s.store.GetRide(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending && r.Status != StatusNegotiating {
		return nil, ErrInvalidState
	}

	now := s.now()
	o := &Offer{
		ID:        newID(),
		RideID:    r.ID,
		DriverID:  cmd.DriverID,
		Price:     cmd.Price,
		Message:   cmd.Message,
		Status:    OfferPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.OfferTTL),
	}
	if err := s.store.CreateOffer(ctx, o); err != nil {
		return nil, err
	}

	// First offer opens the negotiation. Losing this race to another
	// first offer is fine, the ride is negotiating either way.
	if r.Status == StatusPending {
		ok, err := s.store.UpdateRideStatus(ctx, r.ID, StatusPending, StatusNegotiating, r.StatusVersion, RideMutation{})
		if err != nil {
			return nil, err
		}
		if ok {
			_ = s.store.AppendEvent(ctx, &Event{
				RideID:     r.ID,
				FromStatus: StatusPending,
				ToStatus:   StatusNegotiating,
				ActorType:  "driver",
				ActorID:    &cmd.DriverID,
				CreatedAt:  now,
			})
		}
	}

	observability.OffersSubmitted.Inc()
	if s.bus != nil {
		s.bus.Publish(ctx, events.Event{
			RideID:        string(r.ID),
			Kind:          events.KindOfferCreated,
			OfferID:       string(o.ID),
			OfferStatus:   string(o.Status),
			DriverID:      string(o.DriverID),
			PriceCentavos: o.Price.Amount,
			At:            now,
		})
	}
	return o, nil
}

// OfferView is one live offer enriched with driver identity and ETA for the
// passenger's offer list.
type OfferView struct {
	Offer      *Offer
	Driver     *driver.Profile
	EtaMinutes int
}

// ActiveOffers is the passenger-facing snapshot of a negotiation round.
type ActiveOffers struct {
	Offers []OfferView
	// BestOfferID points at the cheapest live offer, or "" when none.
	BestOfferID types.ID
	// AverageSavings is the mean amount by which live offers undercut the
	// passenger's own proposal, counting only offers below it.
	AverageSavings types.Money
}

func (s *Service) ListActiveOffers(ctx context.Context, rideID types.ID) (*ActiveOffers, error) {
	r, err := s.store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	offers, err := s.store.ListOffersByRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := &ActiveOffers{AverageSavings: types.Money{Currency: r.PriceOffer.Currency}}
	var best *Offer
	var savingsSum, savingsN int64
	for _, o := range offers {
		if !o.Active(now) {
			continue
		}
		view := OfferView{Offer: o}
		if s.drivers != nil {
			if p, err := s.drivers.Profile(ctx, o.DriverID); err == nil {
				view.Driver = &p
			}
			if s.estimator != nil {
				if pos, ok, err := s.drivers.Position(ctx, o.DriverID); err == nil && ok {
					view.EtaMinutes = s.estimator.EtaMinutes(ctx, pos, r.Pickup.Position)
				}
			}
		}
		out.Offers = append(out.Offers, view)
		if best == nil || o.Price.Amount < best.Price.Amount {
			best = o
		}
		if d := r.PriceOffer.Amount - o.Price.Amount; d > 0 {
			savingsSum += d
			savingsN++
		}
	}
	if best != nil {
		out.BestOfferID = best.ID
	}
	if savingsN > 0 {
		out.AverageSavings.Amount = savingsSum / savingsN
	}
	return out, nil
}

func (s *Service) Start(ctx context.Context, cmd StartCommand) error {
	return s.transition(ctx, cmd.RideID, StatusInProgress, "driver", &cmd.DriverID, RideMutation{})
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	return s.transition(ctx, cmd.RideID, StatusCompleted, "driver", &cmd.DriverID, RideMutation{})
}

func (s *Service) transition(ctx context.Context, id types.ID, to Status, actorType string, actorID *types.ID, mut RideMutation) error {
	r, err := s.store.GetRide(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(r.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateRideStatus(ctx, r.ID, r.Status, to, r.StatusVersion, mut)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: r.Status,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  s.now(),
	})
	s.publishRide(ctx, r.ID, to)
	return nil
}

func (s *Service) publishRide(ctx context.Context, id types.ID, status Status) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.Event{
		RideID:     string(id),
		Kind:       events.KindRideUpdated,
		RideStatus: string(status),
		At:         s.now(),
	})
}

func (s *Service) routeDistanceKm(ctx context.Context, cmd CreateCommand) float64 {
	legs := make([]types.Point, 0, len(cmd.Stops)+2)
	legs = append(legs, cmd.Pickup.Position)
	for _, st := range cmd.Stops {
		legs = append(legs, st.Position)
	}
	legs = append(legs, cmd.Dropoff.Position)

	var total float64
	for i := 1; i < len(legs); i++ {
		total += s.estimator.DistanceKm(ctx, legs[i-1], legs[i])
	}
	return total
}

func newID() types.ID {
	return types.ID(uuid.NewString())
}
