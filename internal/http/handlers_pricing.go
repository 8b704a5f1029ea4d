// README: fare quote handler.
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"corrida/internal/modules/pricing"
)

func (s *Server) QuoteFare(c *gin.Context) {
	class := c.Query("vehicle_class")
	distanceKm, err := strconv.ParseFloat(c.Query("distance_km"), 64)
	if class == "" || err != nil || distanceKm < 0 {
		writeError(c, http.StatusBadRequest, "vehicle_class and distance_km are required")
		return
	}
	stops, _ := strconv.Atoi(c.DefaultQuery("stops", "0"))

	fare, err := s.pricing.SuggestedFare(c.Request.Context(), class, distanceKm, stops)
	if err != nil {
		if errors.Is(err, pricing.ErrUnknownClass) {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggested_fare": money(fare)})
}
