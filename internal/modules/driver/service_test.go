// README: driver visibility and lookup tests.
package driver

import (
	"context"
	"testing"

	"corrida/internal/types"
)

func seedDriver(t *testing.T, svc *Service, id types.ID, class string, pt types.Point) {
	t.Helper()
	ctx := context.Background()
	if err := svc.Register(ctx, Profile{ID: id, Name: "Driver " + string(id), Rating: 4.8, VehicleClass: class}); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	if err := svc.UpdateLocation(ctx, id, pt); err != nil {
		t.Fatalf("locate %s: %v", id, err)
	}
}

func TestEligibleDrivers_RadiusAndClass(t *testing.T) {
	svc := NewService(NewMemoryStore(), 5.0)
	pickup := types.Point{Lat: -23.5505, Lng: -46.6333}

	// ~1km north of pickup
	seedDriver(t, svc, "d_near_economy", "economy", types.Point{Lat: -23.5415, Lng: -46.6333})
	// ~2km north, wrong class
	seedDriver(t, svc, "d_near_moto", "moto", types.Point{Lat: -23.5325, Lng: -46.6333})
	// ~55km away
	seedDriver(t, svc, "d_far_economy", "economy", types.Point{Lat: -23.05, Lng: -46.6333})

	got, err := svc.EligibleDrivers(context.Background(), pickup, "economy")
	if err != nil {
		t.Fatalf("EligibleDrivers: %v", err)
	}
	if len(got) != 1 || got[0] != "d_near_economy" {
		t.Fatalf("eligible = %v, want [d_near_economy]", got)
	}
}

func TestEligibleDrivers_ClosestFirst(t *testing.T) {
	svc := NewService(NewMemoryStore(), 10.0)
	pickup := types.Point{Lat: -23.5505, Lng: -46.6333}

	seedDriver(t, svc, "d_far", "economy", types.Point{Lat: -23.60, Lng: -46.6333})
	seedDriver(t, svc, "d_close", "economy", types.Point{Lat: -23.5510, Lng: -46.6333})

	got, err := svc.EligibleDrivers(context.Background(), pickup, "economy")
	if err != nil {
		t.Fatalf("EligibleDrivers: %v", err)
	}
	if len(got) != 2 || got[0] != "d_close" || got[1] != "d_far" {
		t.Fatalf("eligible = %v, want [d_close d_far]", got)
	}
}

func TestPosition_UnknownDriver(t *testing.T) {
	svc := NewService(NewMemoryStore(), 5.0)
	_, known, err := svc.Position(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if known {
		t.Fatal("expected unknown position")
	}
	if _, err := svc.Profile(context.Background(), "ghost"); err != ErrNotFound {
		t.Fatalf("Profile(ghost) = %v, want ErrNotFound", err)
	}
}
