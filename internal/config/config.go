// README: Config loader with env defaults for HTTP, DB, Redis, and negotiation settings.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type NegotiationConfig struct {
	// OfferTTL is how long a driver's price offer stays acceptable.
	OfferTTL time.Duration
	// SweepInterval is the cadence of the expiry sweep. Correctness does not
	// depend on it; acceptance always re-checks the deadline.
	SweepInterval time.Duration
	// MaxEmptyCycles is how many fully-expired negotiation rounds a ride
	// survives before it is escalated to failed.
	MaxEmptyCycles int
}

type CancellationConfig struct {
	// GracePeriod after acceptance during which cancelling is free.
	GracePeriod time.Duration
	// FeeCentavos is the flat fee charged past the grace period.
	FeeCentavos int64
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Maps struct {
		APIKey string
	}
	Kafka struct {
		Brokers []string
		Topic   string
	}
	Stripe struct {
		APIKey string
	}
	Geo struct {
		AvgSpeedKmh    float64
		SearchRadiusKm float64
	}
	Negotiation  NegotiationConfig
	Cancellation CancellationConfig
	LogLevel     string
}

func Load() (Config, error) {
	// .env is a local-dev convenience; absence is not an error.
	_ = godotenv.Load()

	var cfg Config
	cfg.HTTP.Addr = envOrDefault("CORRIDA_HTTP_ADDR", ":8080")
	cfg.DB.DSN = os.Getenv("CORRIDA_DB_DSN")
	cfg.Redis.Addr = os.Getenv("CORRIDA_REDIS_ADDR")
	cfg.Maps.APIKey = os.Getenv("CORRIDA_MAPS_API_KEY")
	cfg.Kafka.Brokers = splitAndTrim(os.Getenv("CORRIDA_KAFKA_BROKERS"))
	cfg.Kafka.Topic = envOrDefault("CORRIDA_KAFKA_TOPIC", "ride-events")
	cfg.Stripe.APIKey = os.Getenv("STRIPE_API_KEY")
	cfg.Geo.AvgSpeedKmh = envOrDefaultFloat("CORRIDA_AVG_SPEED_KMH", 30.0)
	cfg.Geo.SearchRadiusKm = envOrDefaultFloat("CORRIDA_SEARCH_RADIUS_KM", 5.0)
	cfg.Negotiation.OfferTTL = envOrDefaultDuration("CORRIDA_OFFER_TTL", 120*time.Second)
	cfg.Negotiation.SweepInterval = envOrDefaultDuration("CORRIDA_SWEEP_INTERVAL", 10*time.Second)
	cfg.Negotiation.MaxEmptyCycles = envOrDefaultInt("CORRIDA_MAX_EMPTY_CYCLES", 3)
	cfg.Cancellation.GracePeriod = envOrDefaultDuration("CORRIDA_CANCEL_GRACE", 2*time.Minute)
	cfg.Cancellation.FeeCentavos = int64(envOrDefaultInt("CORRIDA_CANCEL_FEE_CENTAVOS", 700))
	cfg.LogLevel = envOrDefault("CORRIDA_LOG_LEVEL", "info")
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(v string) []string {
	if v == "" {
		return nil
	}
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s := strings.TrimSpace(r); s != "" {
			out = append(out, s)
		}
	}
	return out
}
