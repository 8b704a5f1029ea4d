// README: Offer handlers for submit/list/accept.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"corrida/internal/modules/ride"
	"corrida/internal/types"
)

type submitOfferReq struct {
	DriverID      string `json:"driver_id"`
	PriceCentavos int64  `json:"price_centavos"`
	Message       string `json:"message"`
}

func (s *Server) SubmitOffer(c *gin.Context) {
	var req submitOfferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := s.rides.SubmitOffer(c.Request.Context(), ride.SubmitOfferCommand{
		RideID:   types.ID(c.Param("id")),
		DriverID: types.ID(req.DriverID),
		Price:    types.BRL(req.PriceCentavos),
		Message:  req.Message,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"offer_id":   o.ID,
		"status":     o.Status,
		"expires_at": o.ExpiresAt,
	})
}

type offerViewJSON struct {
	OfferID       types.ID `json:"offer_id"`
	DriverID      types.ID `json:"driver_id"`
	DriverName    string   `json:"driver_name,omitempty"`
	DriverRating  float64  `json:"driver_rating,omitempty"`
	VehicleModel  string   `json:"vehicle_model,omitempty"`
	VehiclePlate  string   `json:"vehicle_plate,omitempty"`
	PriceCentavos int64    `json:"price_centavos"`
	Message       string   `json:"message,omitempty"`
	EtaMinutes    int      `json:"eta_minutes,omitempty"`
	ExpiresAt     string   `json:"expires_at"`
}

func (s *Server) ListOffers(c *gin.Context) {
	out, err := s.rides.ListActiveOffers(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	views := make([]offerViewJSON, 0, len(out.Offers))
	for _, v := range out.Offers {
		oj := offerViewJSON{
			OfferID:       v.Offer.ID,
			DriverID:      v.Offer.DriverID,
			PriceCentavos: v.Offer.Price.Amount,
			Message:       v.Offer.Message,
			EtaMinutes:    v.EtaMinutes,
			ExpiresAt:     v.Offer.ExpiresAt.Format("2006-01-02T15:04:05.000Z07:00"),
		}
		if v.Driver != nil {
			oj.DriverName = v.Driver.Name
			oj.DriverRating = v.Driver.Rating
			oj.VehicleModel = v.Driver.VehicleModel
			oj.VehiclePlate = v.Driver.VehiclePlate
		}
		views = append(views, oj)
	}
	c.JSON(http.StatusOK, gin.H{
		"offers":          views,
		"best_offer_id":   out.BestOfferID,
		"average_savings": money(out.AverageSavings),
	})
}

type acceptOfferReq struct {
	PassengerID string `json:"passenger_id"`
}

func (s *Server) AcceptOffer(c *gin.Context) {
	var req acceptOfferReq
	_ = c.ShouldBindJSON(&req)
	r, err := s.rides.Accept(c.Request.Context(), ride.AcceptCommand{
		OfferID: types.ID(c.Param("id")),
		ActorID: types.ID(req.PassengerID),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromRide(r))
}
