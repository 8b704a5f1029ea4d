// README: Common identifier and coordinate value objects used across modules.
package types

// ID is an opaque identifier for rides, offers, passengers and drivers.
type ID string

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// IsZero reports whether the point carries no coordinate at all. A ride
// request with a zero pickup or dropoff is rejected as malformed.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}
