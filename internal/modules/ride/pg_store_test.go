// README: Postgres store tests, skipped unless CORRIDA_TEST_DSN is set.
package ride

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"corrida/internal/types"
)

func TestPGStoreAcceptanceGuards(t *testing.T) {
	ctx := context.Background()
	store := setupPGStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	r := &Ride{
		ID:          newID(),
		PassengerID: "p1",
		Status:      StatusNegotiating,
		Pickup:      testPickup,
		Dropoff:     testDropoff,
		PriceOffer:  types.BRL(2000),
		CreatedAt:   now,
	}
	r.StatusVersion = 1
	if err := store.CreateRide(ctx, r); err != nil {
		t.Fatalf("create ride: %v", err)
	}

	winner := &Offer{
		ID: newID(), RideID: r.ID, DriverID: "d1",
		Price: types.BRL(1800), Status: OfferPending,
		CreatedAt: now, ExpiresAt: now.Add(2 * time.Minute),
	}
	loser := &Offer{
		ID: newID(), RideID: r.ID, DriverID: "d2",
		Price: types.BRL(2200), Status: OfferPending,
		CreatedAt: now, ExpiresAt: now.Add(2 * time.Minute),
	}
	for _, o := range []*Offer{winner, loser} {
		if err := store.CreateOffer(ctx, o); err != nil {
			t.Fatalf("create offer: %v", err)
		}
	}

	rejected, applied, err := store.CommitAcceptance(ctx, r, winner, now)
	if err != nil {
		t.Fatalf("commit acceptance: %v", err)
	}
	if !applied {
		t.Fatal("expected commit to apply")
	}
	if len(rejected) != 1 || rejected[0] != loser.ID {
		t.Fatalf("expected loser rejected, got %v", rejected)
	}

	// Replaying the commit with the stale snapshot must not apply.
	_, applied, err = store.CommitAcceptance(ctx, r, winner, now)
	if err != nil {
		t.Fatalf("replay commit: %v", err)
	}
	if applied {
		t.Fatal("stale commit must not apply")
	}

	got, err := store.GetRide(ctx, r.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if got.Status != StatusAccepted || got.StatusVersion != 2 {
		t.Fatalf("unexpected ride state: %s v%d", got.Status, got.StatusVersion)
	}
	if got.DriverID == nil || *got.DriverID != "d1" {
		t.Fatalf("expected winning driver persisted, got %v", got.DriverID)
	}
	if got.FinalPrice == nil || got.FinalPrice.Amount != 1800 {
		t.Fatalf("expected final price persisted, got %v", got.FinalPrice)
	}
}

func TestPGStoreExpiryQueries(t *testing.T) {
	ctx := context.Background()
	store := setupPGStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	r := &Ride{
		ID:          newID(),
		PassengerID: "p1",
		Status:      StatusNegotiating,
		Pickup:      testPickup,
		Dropoff:     testDropoff,
		PriceOffer:  types.BRL(2000),
		CreatedAt:   now,
	}
	if err := store.CreateRide(ctx, r); err != nil {
		t.Fatalf("create ride: %v", err)
	}
	stale := &Offer{
		ID: newID(), RideID: r.ID, DriverID: "d1",
		Price: types.BRL(1800), Status: OfferPending,
		CreatedAt: now.Add(-3 * time.Minute), ExpiresAt: now.Add(-time.Minute),
	}
	if err := store.CreateOffer(ctx, stale); err != nil {
		t.Fatalf("create offer: %v", err)
	}

	expired, err := store.ExpireStaleOffers(ctx, now)
	if err != nil {
		t.Fatalf("expire stale offers: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != stale.ID {
		t.Fatalf("expected the stale offer expired, got %v", expired)
	}

	stalled, err := store.ListStalledRides(ctx, now)
	if err != nil {
		t.Fatalf("list stalled rides: %v", err)
	}
	found := false
	for _, sr := range stalled {
		if sr.ID == r.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected ride listed as stalled")
	}

	ok, err := store.ReopenRide(ctx, r.ID, r.StatusVersion)
	if err != nil {
		t.Fatalf("reopen ride: %v", err)
	}
	if !ok {
		t.Fatal("expected reopen to apply")
	}
	got, _ := store.GetRide(ctx, r.ID)
	if got.Status != StatusPending || got.EmptyCycles != 1 {
		t.Fatalf("unexpected reopened state: %s cycles=%d", got.Status, got.EmptyCycles)
	}
}

func setupPGStore(t *testing.T) *PGStore {
	t.Helper()

	dsn := os.Getenv("CORRIDA_TEST_DSN")
	if dsn == "" {
		t.Skip("CORRIDA_TEST_DSN not set; skipping DB-backed store tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE ride_events, price_offers, rides"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return NewPGStore(db)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
