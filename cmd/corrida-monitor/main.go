// README: Fleet monitor; consumes the ride event topic and exposes counters.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"corrida/internal/config"
	"corrida/internal/events"
	"corrida/internal/logging"
)

var eventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "corrida",
	Subsystem: "monitor",
	Name:      "events_consumed_total",
	Help:      "Ride events consumed from the broker",
}, []string{"kind"})

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Error("CORRIDA_KAFKA_BROKERS is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: "corrida-monitor",
	})
	defer reader.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	server := &http.Server{Addr: envAddr(), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "err", err)
		}
	}()

	logger.Info("monitor consuming", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("read message", "err", err)
			continue
		}
		var ev events.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Warn("malformed event", "offset", msg.Offset, "err", err)
			continue
		}
		eventsConsumed.WithLabelValues(string(ev.Kind)).Inc()
		logger.Info("ride event",
			"ride_id", ev.RideID,
			"seq", ev.Seq,
			"kind", ev.Kind,
			"ride_status", ev.RideStatus,
			"offer_id", ev.OfferID,
			"offer_status", ev.OfferStatus,
			"price_centavos", ev.PriceCentavos,
		)
	}
}

func envAddr() string {
	if v := os.Getenv("CORRIDA_MONITOR_ADDR"); v != "" {
		return v
	}
	return ":9090"
}
