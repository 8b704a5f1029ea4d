// README: Driver profile and vehicle descriptor.
package driver

import (
	"time"

	"corrida/internal/types"
)

type Profile struct {
	ID           types.ID
	Name         string
	Rating       float64 // 0..5
	VehicleClass string
	VehicleModel string
	VehiclePlate string
}

// Position is a driver's last known location, used for ETA enrichment and
// for deciding which drivers may see a pending ride.
type Position struct {
	DriverID   types.ID
	Point      types.Point
	RecordedAt time.Time
}
