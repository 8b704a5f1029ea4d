// README: Entry point; loads config, wires services, starts HTTP server and the expiry sweeper.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"corrida/internal/billing"
	"corrida/internal/config"
	"corrida/internal/events"
	httptransport "corrida/internal/http"
	"corrida/internal/infra"
	"corrida/internal/logging"
	"corrida/internal/modules/driver"
	"corrida/internal/modules/geo"
	"corrida/internal/modules/pricing"
	"corrida/internal/modules/ride"
	"corrida/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rideStore ride.Store = ride.NewMemoryStore()
	var driverStore driver.Store = driver.NewMemoryStore()
	var pricingStore pricing.Store = pricing.NewStaticStore()

	if cfg.DB.DSN != "" {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			logger.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer dbPool.Close()
		rideStore = ride.NewPGStore(dbPool)
		pricingStore = pricing.NewPGStore(dbPool)

		if cfg.Redis.Addr != "" {
			redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
			if err != nil {
				logger.Error("redis init failed", "err", err)
				os.Exit(1)
			}
			defer redisClient.Close()
			driverStore = driver.NewRedisStore(dbPool, redisClient)
		}
	} else {
		logger.Warn("CORRIDA_DB_DSN not set, running with in-memory stores")
	}

	var sinks []events.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		sink := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer sink.Close()
		sinks = append(sinks, sink)
	}
	hub := events.NewHub(logger, sinks...)

	estimator := &geo.Estimator{AvgSpeedKmh: cfg.Geo.AvgSpeedKmh}
	if cfg.Maps.APIKey != "" {
		routes, err := geo.NewGoogleRoutes(cfg.Maps.APIKey)
		if err != nil {
			logger.Error("maps client init failed", "err", err)
			os.Exit(1)
		}
		estimator.Routes = routes
	}

	var biller billing.Biller = billing.NopBiller{}
	if cfg.Stripe.APIKey != "" {
		biller = billing.NewStripeBiller(cfg.Stripe.APIKey)
	}

	pricingSvc := pricing.NewService(pricingStore)
	driverSvc := driver.NewService(driverStore, cfg.Geo.SearchRadiusKm)
	rideSvc := ride.NewService(ride.Deps{
		Store:     rideStore,
		Pricing:   pricingSvc,
		Drivers:   driverSvc,
		Estimator: estimator,
		Bus:       hub,
		Biller:    biller,
		CancelPolicy: billing.Policy{
			GracePeriod: cfg.Cancellation.GracePeriod,
			Fee:         types.BRL(cfg.Cancellation.FeeCentavos),
		},
		Negotiation: cfg.Negotiation,
		Logger:      logger,
	})

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Rides:   rideSvc,
		Drivers: driverSvc,
		Pricing: pricingSvc,
		Hub:     hub,
		Logger:  logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Router()}

	go rideSvc.RunExpirySweeper(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("corrida api listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server", "err", err)
		os.Exit(1)
	}
}
