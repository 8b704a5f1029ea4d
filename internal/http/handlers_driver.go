// README: Driver handlers for registration and location updates.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"corrida/internal/modules/driver"
	"corrida/internal/types"
)

type registerDriverReq struct {
	DriverID     string  `json:"driver_id"`
	Name         string  `json:"name"`
	Rating       float64 `json:"rating"`
	VehicleClass string  `json:"vehicle_class"`
	VehicleModel string  `json:"vehicle_model"`
	VehiclePlate string  `json:"vehicle_plate"`
}

func (s *Server) RegisterDriver(c *gin.Context) {
	var req registerDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.DriverID == "" || req.VehicleClass == "" {
		writeError(c, http.StatusBadRequest, "missing fields")
		return
	}
	err := s.drivers.Register(c.Request.Context(), driver.Profile{
		ID:           types.ID(req.DriverID),
		Name:         req.Name,
		Rating:       req.Rating,
		VehicleClass: req.VehicleClass,
		VehicleModel: req.VehicleModel,
		VehiclePlate: req.VehiclePlate,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"driver_id": req.DriverID})
}

type locationUpdateReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (s *Server) UpdateDriverLocation(c *gin.Context) {
	var req locationUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	pt := types.Point{Lat: req.Lat, Lng: req.Lng}
	if pt.IsZero() {
		writeError(c, http.StatusBadRequest, "missing coordinates")
		return
	}
	if err := s.drivers.UpdateLocation(c.Request.Context(), types.ID(c.Param("id")), pt); err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}
