// README: HTTP helper utilities for JSON responses and error mapping.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"corrida/internal/modules/driver"
	"corrida/internal/modules/ride"
	"corrida/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

func writeRideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrExpired):
		writeError(c, http.StatusGone, err.Error())
	case errors.Is(err, ride.ErrInvalidState), errors.Is(err, ride.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

type moneyJSON struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func money(m types.Money) moneyJSON {
	return moneyJSON{Amount: m.Amount, Currency: m.Currency}
}

func moneyPtr(m *types.Money) *moneyJSON {
	if m == nil {
		return nil
	}
	v := money(*m)
	return &v
}

type stopJSON struct {
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func (s stopJSON) toStop() ride.Stop {
	return ride.Stop{Address: s.Address, Position: types.Point{Lat: s.Lat, Lng: s.Lng}}
}

func fromStop(s ride.Stop) stopJSON {
	return stopJSON{Address: s.Address, Lat: s.Position.Lat, Lng: s.Position.Lng}
}

type rideJSON struct {
	ID            types.ID   `json:"ride_id"`
	PassengerID   types.ID   `json:"passenger_id"`
	DriverID      *types.ID  `json:"driver_id,omitempty"`
	Status        string     `json:"status"`
	Pickup        stopJSON   `json:"pickup"`
	Dropoff       stopJSON   `json:"dropoff"`
	Stops         []stopJSON `json:"stops,omitempty"`
	PriceOffer    moneyJSON  `json:"price_offer"`
	SuggestedFare moneyJSON  `json:"suggested_fare"`
	FinalPrice    *moneyJSON `json:"final_price,omitempty"`
	VehicleClass  string     `json:"vehicle_class"`
	EmptyCycles   int        `json:"empty_cycles,omitempty"`
}

func fromRide(r *ride.Ride) rideJSON {
	out := rideJSON{
		ID:            r.ID,
		PassengerID:   r.PassengerID,
		DriverID:      r.DriverID,
		Status:        string(r.Status),
		Pickup:        fromStop(r.Pickup),
		Dropoff:       fromStop(r.Dropoff),
		PriceOffer:    money(r.PriceOffer),
		SuggestedFare: money(r.SuggestedFare),
		FinalPrice:    moneyPtr(r.FinalPrice),
		VehicleClass:  r.VehicleClass,
		EmptyCycles:   r.EmptyCycles,
	}
	for _, s := range r.Stops {
		out.Stops = append(out.Stops, fromStop(s))
	}
	return out
}
