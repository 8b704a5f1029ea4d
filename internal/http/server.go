// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"corrida/internal/events"
	"corrida/internal/http/middleware"
	"corrida/internal/modules/driver"
	"corrida/internal/modules/pricing"
	"corrida/internal/modules/ride"
)

type ServerDeps struct {
	Rides   *ride.Service
	Drivers *driver.Service
	Pricing *pricing.Service
	Hub     *events.Hub
	Logger  *slog.Logger
}

type Server struct {
	rides   *ride.Service
	drivers *driver.Service
	pricing *pricing.Service
	hub     *events.Hub
	logger  *slog.Logger
}

func NewServer(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{
		rides:   deps.Rides,
		drivers: deps.Drivers,
		pricing: deps.Pricing,
		hub:     deps.Hub,
		logger:  deps.Logger,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.Logging(s.logger))
	r.Use(middleware.Metrics())

	api := r.Group("/api")
	{
		api.POST("/rides", s.CreateRide)
		api.GET("/rides/:id", s.GetRide)
		api.GET("/rides/:id/events", s.GetRideEvents)
		api.POST("/rides/:id/cancel", s.CancelRide)
		api.POST("/rides/:id/start", s.StartRide)
		api.POST("/rides/:id/complete", s.CompleteRide)

		api.POST("/rides/:id/offers", s.SubmitOffer)
		api.GET("/rides/:id/offers", s.ListOffers)
		api.POST("/offers/:id/accept", s.AcceptOffer)

		api.GET("/quotes", s.QuoteFare)

		api.POST("/drivers", s.RegisterDriver)
		api.PUT("/drivers/:id/location", s.UpdateDriverLocation)
	}

	if s.hub != nil {
		r.GET("/ws/rides/:id", func(c *gin.Context) {
			s.hub.ServeRide(c.Writer, c.Request, c.Param("id"))
		})
		r.GET("/ws/drivers/:id", func(c *gin.Context) {
			s.hub.ServeDriver(c.Writer, c.Request, c.Param("id"))
		})
		r.GET("/ws/fleet", func(c *gin.Context) {
			s.hub.ServeFleet(c.Writer, c.Request)
		})
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}
