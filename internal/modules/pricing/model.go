// README: Pricing rate definition for each vehicle class.
package pricing

// Rate is the configured tariff for one vehicle class. Per-class base fare
// and per-km rate are configuration data, not derived values.
type Rate struct {
	VehicleClass  string
	BaseFare      int64 // centavos
	PerKm         int64 // centavos per km
	StopSurcharge int64 // centavos per intermediate stop
	Currency      string
}

// DefaultRates is the built-in tariff table used when no rate row exists in
// the store. Classes listed here form the supported set.
var DefaultRates = map[string]Rate{
	"economy":   {VehicleClass: "economy", BaseFare: 500, PerKm: 180, StopSurcharge: 150, Currency: "BRL"},
	"comfort":   {VehicleClass: "comfort", BaseFare: 700, PerKm: 230, StopSurcharge: 150, Currency: "BRL"},
	"executive": {VehicleClass: "executive", BaseFare: 1000, PerKm: 320, StopSurcharge: 200, Currency: "BRL"},
	"moto":      {VehicleClass: "moto", BaseFare: 350, PerKm: 120, StopSurcharge: 100, Currency: "BRL"},
}

// Supported reports whether the vehicle class belongs to the supported set.
func Supported(vehicleClass string) bool {
	_, ok := DefaultRates[vehicleClass]
	return ok
}
