// README: Ride handlers for create/get/cancel/start/complete.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"corrida/internal/modules/ride"
	"corrida/internal/types"
)

type createRideReq struct {
	PassengerID   string     `json:"passenger_id"`
	Pickup        stopJSON   `json:"pickup"`
	Dropoff       stopJSON   `json:"dropoff"`
	Stops         []stopJSON `json:"stops"`
	PriceCentavos int64      `json:"price_centavos"`
	VehicleClass  string     `json:"vehicle_class"`
	PaymentMethod string     `json:"payment_method"`
}

func (s *Server) CreateRide(c *gin.Context) {
	var req createRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := ride.CreateCommand{
		PassengerID:   types.ID(req.PassengerID),
		Pickup:        req.Pickup.toStop(),
		Dropoff:       req.Dropoff.toStop(),
		PriceOffer:    types.BRL(req.PriceCentavos),
		VehicleClass:  req.VehicleClass,
		PaymentMethod: req.PaymentMethod,
	}
	for _, st := range req.Stops {
		cmd.Stops = append(cmd.Stops, st.toStop())
	}
	r, err := s.rides.Create(c.Request.Context(), cmd)
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fromRide(r))
}

func (s *Server) GetRide(c *gin.Context) {
	r, err := s.rides.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromRide(r))
}

type rideEventJSON struct {
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ActorType  string    `json:"actor_type"`
	ActorID    *types.ID `json:"actor_id,omitempty"`
	CreatedAt  string    `json:"created_at"`
}

func (s *Server) GetRideEvents(c *gin.Context) {
	evs, err := s.rides.Events(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	out := make([]rideEventJSON, 0, len(evs))
	for _, ev := range evs {
		out = append(out, rideEventJSON{
			FromStatus: string(ev.FromStatus),
			ToStatus:   string(ev.ToStatus),
			ActorType:  ev.ActorType,
			ActorID:    ev.ActorID,
			CreatedAt:  ev.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

type cancelRideReq struct {
	ActorType string `json:"actor_type"`
	Reason    string `json:"reason"`
}

func (s *Server) CancelRide(c *gin.Context) {
	var req cancelRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ActorType == "" {
		req.ActorType = "passenger"
	}
	fee, err := s.rides.Cancel(c.Request.Context(), ride.CancelCommand{
		RideID:    types.ID(c.Param("id")),
		ActorType: req.ActorType,
		Reason:    req.Reason,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           ride.StatusCancelled,
		"cancellation_fee": money(fee),
	})
}

type tripActionReq struct {
	DriverID string `json:"driver_id"`
}

func (s *Server) StartRide(c *gin.Context) {
	var req tripActionReq
	_ = c.ShouldBindJSON(&req)
	err := s.rides.Start(c.Request.Context(), ride.StartCommand{
		RideID:   types.ID(c.Param("id")),
		DriverID: types.ID(req.DriverID),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": ride.StatusInProgress})
}

func (s *Server) CompleteRide(c *gin.Context) {
	var req tripActionReq
	_ = c.ShouldBindJSON(&req)
	err := s.rides.Complete(c.Request.Context(), ride.CompleteCommand{
		RideID:   types.ID(c.Param("id")),
		DriverID: types.ID(req.DriverID),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": ride.StatusCompleted})
}
