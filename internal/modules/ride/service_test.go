// README: unit tests for the negotiation flow against the in-memory store.
package ride

import (
	"context"
	"sync"
	"testing"
	"time"

	"corrida/internal/billing"
	"corrida/internal/config"
	"corrida/internal/events"
	"corrida/internal/modules/driver"
	"corrida/internal/modules/geo"
	"corrida/internal/modules/pricing"
	"corrida/internal/types"
)

type recordBus struct {
	mu       sync.Mutex
	events   []events.Event
	notified [][]string
}

func (b *recordBus) Publish(_ context.Context, ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordBus) NotifyDrivers(_ context.Context, driverIDs []string, ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notified = append(b.notified, driverIDs)
	b.events = append(b.events, ev)
}

func (b *recordBus) kinds() []events.Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Kind, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.Kind
	}
	return out
}

type recordBiller struct {
	mu    sync.Mutex
	holds []types.Money
	done  chan struct{}
}

func (b *recordBiller) HoldCancellationFee(_ context.Context, _, _ types.ID, fee types.Money) error {
	b.mu.Lock()
	b.holds = append(b.holds, fee)
	b.mu.Unlock()
	if b.done != nil {
		close(b.done)
	}
	return nil
}

type testEnv struct {
	svc     *Service
	store   *MemoryStore
	bus     *recordBus
	biller  *recordBiller
	drivers *driver.Service
	clock   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   NewMemoryStore(),
		bus:     &recordBus{},
		biller:  &recordBiller{},
		drivers: driver.NewService(driver.NewMemoryStore(), 5.0),
		clock:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(Deps{
		Store:     env.store,
		Pricing:   pricing.NewService(pricing.NewStaticStore()),
		Drivers:   env.drivers,
		Estimator: &geo.Estimator{AvgSpeedKmh: 30},
		Bus:       env.bus,
		Biller:    env.biller,
		CancelPolicy: billing.Policy{
			GracePeriod: 2 * time.Minute,
			Fee:         types.BRL(700),
		},
		Negotiation: config.NegotiationConfig{
			OfferTTL:       2 * time.Minute,
			SweepInterval:  10 * time.Second,
			MaxEmptyCycles: 3,
		},
	})
	env.svc.now = func() time.Time { return env.clock }
	return env
}

func (e *testEnv) advance(d time.Duration) { e.clock = e.clock.Add(d) }

var (
	testPickup  = Stop{Address: "Av. Paulista, 1578", Position: types.Point{Lat: -23.5614, Lng: -46.6559}}
	testDropoff = Stop{Address: "Aeroporto de Congonhas", Position: types.Point{Lat: -23.6266, Lng: -46.6556}}
)

func createTestRide(t *testing.T, env *testEnv) *Ride {
	t.Helper()
	r, err := env.svc.Create(context.Background(), CreateCommand{
		PassengerID:   "p1",
		Pickup:        testPickup,
		Dropoff:       testDropoff,
		PriceOffer:    types.BRL(2000),
		VehicleClass:  "economy",
		PaymentMethod: "pix",
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return r
}

func submitTestOffer(t *testing.T, env *testEnv, rideID types.ID, driverID types.ID, price int64) *Offer {
	t.Helper()
	o, err := env.svc.SubmitOffer(context.Background(), SubmitOfferCommand{
		RideID:   rideID,
		DriverID: driverID,
		Price:    types.BRL(price),
	})
	if err != nil {
		t.Fatalf("submit offer: %v", err)
	}
	return o
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusNegotiating, true},
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusCancelled, true},
		{StatusNegotiating, StatusAccepted, true},
		{StatusNegotiating, StatusPending, true},
		{StatusNegotiating, StatusFailed, true},
		{StatusAccepted, StatusInProgress, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, false},
		{StatusAccepted, StatusNegotiating, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusFailed, StatusPending, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	valid := CreateCommand{
		PassengerID:  "p1",
		Pickup:       testPickup,
		Dropoff:      testDropoff,
		PriceOffer:   types.BRL(2000),
		VehicleClass: "economy",
	}

	cases := []struct {
		name   string
		mutate func(*CreateCommand)
	}{
		{"missing passenger", func(c *CreateCommand) { c.PassengerID = "" }},
		{"missing vehicle class", func(c *CreateCommand) { c.VehicleClass = "" }},
		{"zero pickup", func(c *CreateCommand) { c.Pickup.Position = types.Point{} }},
		{"zero dropoff", func(c *CreateCommand) { c.Dropoff.Position = types.Point{} }},
		{"zero price", func(c *CreateCommand) { c.PriceOffer = types.BRL(0) }},
		{"negative price", func(c *CreateCommand) { c.PriceOffer = types.BRL(-100) }},
		{"unknown vehicle class", func(c *CreateCommand) { c.VehicleClass = "zeppelin" }},
		{"too many stops", func(c *CreateCommand) {
			c.Stops = []Stop{
				{Position: types.Point{Lat: -23.55, Lng: -46.64}},
				{Position: types.Point{Lat: -23.56, Lng: -46.63}},
				{Position: types.Point{Lat: -23.57, Lng: -46.62}},
				{Position: types.Point{Lat: -23.58, Lng: -46.61}},
			}
		}},
		{"stop without coordinates", func(c *CreateCommand) {
			c.Stops = []Stop{{Address: "somewhere"}}
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cmd := valid
			c.mutate(&cmd)
			if _, err := env.svc.Create(ctx, cmd); err != ErrBadRequest {
				t.Fatalf("expected ErrBadRequest, got %v", err)
			}
		})
	}

	r, err := env.svc.Create(ctx, valid)
	if err != nil {
		t.Fatalf("valid create: %v", err)
	}
	if r.Status != StatusPending || r.StatusVersion != 0 {
		t.Fatalf("unexpected new ride state: %s v%d", r.Status, r.StatusVersion)
	}
	if !r.SuggestedFare.Positive() {
		t.Fatalf("expected a suggested fare, got %d", r.SuggestedFare.Amount)
	}
}

func TestCreateValidatesClassWithoutPricing(t *testing.T) {
	// A service wired with only a store must still reject unknown classes.
	svc := NewService(Deps{Store: NewMemoryStore()})
	ctx := context.Background()

	cmd := CreateCommand{
		PassengerID:  "p1",
		Pickup:       testPickup,
		Dropoff:      testDropoff,
		PriceOffer:   types.BRL(2000),
		VehicleClass: "zeppelin",
	}
	if _, err := svc.Create(ctx, cmd); err != ErrBadRequest {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}

	cmd.VehicleClass = "economy"
	r, err := svc.Create(ctx, cmd)
	if err != nil {
		t.Fatalf("valid create: %v", err)
	}
	if r.SuggestedFare.Positive() {
		t.Fatalf("no pricing wired, expected zero suggested fare, got %d", r.SuggestedFare.Amount)
	}
}

func TestCreateBroadcastsToEligibleDrivers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, d := range []struct {
		id    types.ID
		class string
		pos   types.Point
	}{
		{"d_near", "economy", types.Point{Lat: -23.5620, Lng: -46.6550}},
		{"d_far", "economy", types.Point{Lat: -23.9000, Lng: -46.6550}},
		{"d_moto", "moto", types.Point{Lat: -23.5615, Lng: -46.6560}},
	} {
		if err := env.drivers.Register(ctx, driver.Profile{ID: d.id, VehicleClass: d.class}); err != nil {
			t.Fatalf("register driver: %v", err)
		}
		if err := env.drivers.UpdateLocation(ctx, d.id, d.pos); err != nil {
			t.Fatalf("update location: %v", err)
		}
	}

	createTestRide(t, env)

	if len(env.bus.notified) != 1 {
		t.Fatalf("expected one driver notification batch, got %d", len(env.bus.notified))
	}
	got := env.bus.notified[0]
	if len(got) != 1 || got[0] != "d_near" {
		t.Fatalf("expected only d_near to be notified, got %v", got)
	}
}

func TestSubmitOfferOpensNegotiation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := createTestRide(t, env)

	o := submitTestOffer(t, env, r.ID, "d1", 1800)
	if o.Status != OfferPending {
		t.Fatalf("expected pending offer, got %s", o.Status)
	}
	if want := env.clock.Add(2 * time.Minute); !o.ExpiresAt.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, o.ExpiresAt)
	}

	got, err := env.svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if got.Status != StatusNegotiating {
		t.Fatalf("expected negotiating after first offer, got %s", got.Status)
	}

	// A second offer arrives while negotiating; no further status change.
	submitTestOffer(t, env, r.ID, "d2", 2200)
	got, _ = env.svc.Get(ctx, r.ID)
	if got.Status != StatusNegotiating || got.StatusVersion != 1 {
		t.Fatalf("unexpected state after second offer: %s v%d", got.Status, got.StatusVersion)
	}
}

func TestSubmitOfferRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := createTestRide(t, env)

	if _, err := env.svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, DriverID: "d1", Price: types.BRL(0)}); err != ErrBadRequest {
		t.Fatalf("zero price: expected ErrBadRequest, got %v", err)
	}
	if _, err := env.svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: "missing", DriverID: "d1", Price: types.BRL(1500)}); err != ErrNotFound {
		t.Fatalf("missing ride: expected ErrNotFound, got %v", err)
	}

	o := submitTestOffer(t, env, r.ID, "d1", 1800)
	if _, err := env.svc.Accept(ctx, AcceptCommand{OfferID: o.ID}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := env.svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, DriverID: "d2", Price: types.BRL(1700)}); err != ErrInvalidState {
		t.Fatalf("offer on accepted ride: expected ErrInvalidState, got %v", err)
	}
}

func TestListActiveOffers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := createTestRide(t, env)

	if err := env.drivers.Register(ctx, driver.Profile{ID: "d1", Name: "Ana", Rating: 4.9, VehicleClass: "economy"}); err != nil {
		t.Fatalf("register driver: %v", err)
	}
	if err := env.drivers.UpdateLocation(ctx, "d1", types.Point{Lat: -23.5700, Lng: -46.6559}); err != nil {
		t.Fatalf("update location: %v", err)
	}

	submitTestOffer(t, env, r.ID, "d1", 1800)
	o2 := submitTestOffer(t, env, r.ID, "d2", 2200)

	out, err := env.svc.ListActiveOffers(ctx, r.ID)
	if err != nil {
		t.Fatalf("list offers: %v", err)
	}
	if len(out.Offers) != 2 {
		t.Fatalf("expected 2 live offers, got %d", len(out.Offers))
	}
	// Only the 1800 offer undercuts the passenger's 2000.
	if out.AverageSavings.Amount != 200 {
		t.Fatalf("expected average savings 200, got %d", out.AverageSavings.Amount)
	}
	best, _ := env.svc.store.GetOffer(ctx, out.BestOfferID)
	if best.Price.Amount != 1800 {
		t.Fatalf("expected cheapest offer as best, got %d", best.Price.Amount)
	}
	for _, v := range out.Offers {
		if v.Offer.DriverID == "d1" {
			if v.Driver == nil || v.Driver.Name != "Ana" {
				t.Fatalf("expected driver profile enrichment, got %+v", v.Driver)
			}
			if v.EtaMinutes < 1 {
				t.Fatalf("expected a positive eta, got %d", v.EtaMinutes)
			}
		}
	}

	// Expired offers drop out of the listing without waiting for the sweep.
	env.advance(3 * time.Minute)
	out, err = env.svc.ListActiveOffers(ctx, r.ID)
	if err != nil {
		t.Fatalf("list offers after expiry: %v", err)
	}
	if len(out.Offers) != 0 || out.BestOfferID != "" {
		t.Fatalf("expected no live offers after deadline, got %d", len(out.Offers))
	}
	_ = o2
}

func TestAcceptCommitsWinnerAndRejectsRest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := createTestRide(t, env)

	winner := submitTestOffer(t, env, r.ID, "d1", 1800)
	loser := submitTestOffer(t, env, r.ID, "d2", 2200)

	got, err := env.svc.Accept(ctx, AcceptCommand{OfferID: winner.ID, ActorID: "p1"})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != StatusAccepted {
		t.Fatalf("expected accepted ride, got %s", got.Status)
	}
	if got.DriverID == nil || *got.DriverID != "d1" {
		t.Fatalf("expected winning driver committed, got %v", got.DriverID)
	}
	if got.FinalPrice == nil || got.FinalPrice.Amount != 1800 {
		t.Fatalf("expected final price 1800, got %v", got.FinalPrice)
	}
	if got.AcceptedAt == nil || !got.AcceptedAt.Equal(env.clock) {
		t.Fatalf("expected accepted_at stamped, got %v", got.AcceptedAt)
	}

	w, _ := env.store.GetOffer(ctx, winner.ID)
	l, _ := env.store.GetOffer(ctx, loser.ID)
	if w.Status != OfferAccepted || l.Status != OfferRejected {
		t.Fatalf("unexpected offer states: winner=%s loser=%s", w.Status, l.Status)
	}

	// Accepting the same offer again is not a second win.
	if _, err := env.svc.Accept(ctx, AcceptCommand{OfferID: winner.ID}); err != ErrConflict {
		t.Fatalf("double accept: expected ErrConflict, got %v", err)
	}
	// Accepting the rejected offer cannot steal the ride.
	if _, err := env.svc.Accept(ctx, AcceptCommand{OfferID: loser.ID}); err != ErrConflict {
		t.Fatalf("accept rejected offer: expected ErrConflict, got %v", err)
	}
}

func TestAcceptExpiredOffer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := createTestRide(t, env)
	o := submitTestOffer(t, env, r.ID, "d1", 1800)

	env.advance(2*time.Minute + time.Second)
	if _, err := env.svc.Accept(ctx, AcceptCommand{OfferID: o.ID}); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	got, _ := env.svc.Get(ctx, r.ID)
	if got.Status != StatusNegotiating {
		t.Fatalf("ride must be untouched by a failed accept, got %s", got.Status)
	}
}

func TestAcceptAtExactDeadline(t *testing.T) {
	// An offer stays acceptable up to and including its expiry instant.
	env := newTestEnv(t)
	ctx := context.Background()
	r := createTestRide(t, env)
	o := submitTestOffer(t, env, r.ID, "d1", 1800)

	env.clock = o.ExpiresAt
	got, err := env.svc.Accept(ctx, AcceptCommand{OfferID: o.ID})
	if err != nil {
		t.Fatalf("accept at deadline: %v", err)
	}
	if got.Status != StatusAccepted {
		t.Fatalf("expected accepted ride, got %s", got.Status)
	}
}

func TestAcceptAfterSweepMarkedExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := createTestRide(t, env)
	o := submitTestOffer(t, env, r.ID, "d1", 1800)

	env.advance(2*time.Minute + time.Second)
	if err := env.svc.SweepOnce(ctx, env.clock); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, err := env.svc.Accept(ctx, AcceptCommand{OfferID: o.ID}); err != ErrExpired {
		t.Fatalf("expected ErrExpired after sweep, got %v", err)
	}
	_ = r
}

func TestCancelBeforeDriverCommitted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := createTestRide(t, env)
	o := submitTestOffer(t, env, r.ID, "d1", 1800)

	fee, err := env.svc.Cancel(ctx, CancelCommand{RideID: r.ID, ActorType: "passenger", Reason: "changed plans"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if fee.Amount != 0 {
		t.Fatalf("expected no fee before a driver is committed, got %d", fee.Amount)
	}

	got, _ := env.svc.Get(ctx, r.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	if got.CancelReason == nil || *got.CancelReason != "changed plans" {
		t.Fatalf("expected cancel reason persisted, got %v", got.CancelReason)
	}
	oo, _ := env.store.GetOffer(ctx, o.ID)
	if oo.Status != OfferRejected {
		t.Fatalf("expected pending offer rejected on cancel, got %s", oo.Status)
	}
	if _, err := env.svc.Accept(ctx, AcceptCommand{OfferID: o.ID}); err != ErrConflict {
		t.Fatalf("accept after cancel: expected ErrConflict, got %v", err)
	}
}

func TestCancelWithinGracePeriod(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := createTestRide(t, env)
	o := submitTestOffer(t, env, r.ID, "d1", 1800)
	if _, err := env.svc.Accept(ctx, AcceptCommand{OfferID: o.ID}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	env.advance(90 * time.Second)
	fee, err := env.svc.Cancel(ctx, CancelCommand{RideID: r.ID, ActorType: "passenger", Reason: "too slow"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if fee.Amount != 0 {
		t.Fatalf("expected no fee within grace period, got %d", fee.Amount)
	}
	if len(env.biller.holds) != 0 {
		t.Fatalf("expected no fee hold, got %d", len(env.biller.holds))
	}
}

func TestCancelAfterGracePeriodHoldsFee(t *testing.T) {
	env := newTestEnv(t)
	env.biller.done = make(chan struct{})
	ctx := context.Background()
	r := createTestRide(t, env)
	o := submitTestOffer(t, env, r.ID, "d1", 1800)
	if _, err := env.svc.Accept(ctx, AcceptCommand{OfferID: o.ID}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	env.advance(10 * time.Minute)
	fee, err := env.svc.Cancel(ctx, CancelCommand{RideID: r.ID, ActorType: "passenger", Reason: "no-show"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if fee.Amount != 700 {
		t.Fatalf("expected R$7,00 fee, got %d", fee.Amount)
	}

	select {
	case <-env.biller.done:
	case <-time.After(2 * time.Second):
		t.Fatal("fee hold was never issued")
	}
	env.biller.mu.Lock()
	defer env.biller.mu.Unlock()
	if len(env.biller.holds) != 1 || env.biller.holds[0].Amount != 700 {
		t.Fatalf("unexpected fee holds: %v", env.biller.holds)
	}
}

func TestCancelInProgressRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := createTestRide(t, env)
	o := submitTestOffer(t, env, r.ID, "d1", 1800)
	if _, err := env.svc.Accept(ctx, AcceptCommand{OfferID: o.ID}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := env.svc.Start(ctx, StartCommand{RideID: r.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.svc.Cancel(ctx, CancelCommand{RideID: r.ID, ActorType: "passenger"}); err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestRideLifecycleToCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := createTestRide(t, env)
	o := submitTestOffer(t, env, r.ID, "d1", 1800)
	if _, err := env.svc.Accept(ctx, AcceptCommand{OfferID: o.ID}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := env.svc.Start(ctx, StartCommand{RideID: r.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := env.svc.Complete(ctx, CompleteCommand{RideID: r.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := env.svc.Get(ctx, r.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatalf("expected trip timestamps stamped")
	}

	evs, err := env.svc.Events(ctx, r.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	want := []Status{StatusPending, StatusNegotiating, StatusAccepted, StatusInProgress, StatusCompleted}
	if len(evs) != len(want) {
		t.Fatalf("expected %d audit events, got %d", len(want), len(evs))
	}
	for i, ev := range evs {
		if ev.ToStatus != want[i] {
			t.Fatalf("audit event %d: expected %s, got %s", i, want[i], ev.ToStatus)
		}
	}
}

func TestPublishedEventKinds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := createTestRide(t, env)
	o := submitTestOffer(t, env, r.ID, "d1", 1800)
	submitTestOffer(t, env, r.ID, "d2", 2200)
	if _, err := env.svc.Accept(ctx, AcceptCommand{OfferID: o.ID}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	want := []events.Kind{
		events.KindOfferCreated,
		events.KindOfferCreated,
		events.KindOfferResolved, // winner accepted
		events.KindOfferResolved, // loser rejected
		events.KindRideUpdated,
	}
	got := env.bus.kinds()
	if len(got) != len(want) {
		t.Fatalf("expected %d published events, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
