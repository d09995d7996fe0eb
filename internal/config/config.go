package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the dispatch server.
// Values are loaded from environment variables with defaults that let the
// binary run locally without setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	OSRMEndpoint string

	StripeAPIKey string
	Currency     string

	GeohashPrecision uint
	MatchMaxRings    int
	MatchMaxRetries  int
	OfferWindow      time.Duration
	QuoteTTL         time.Duration
	AutoStart        bool
	OutboundQueue    int

	LogLevel string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:         ":8080",
		ReadTimeout:      5 * time.Second,
		IdleTimeout:      120 * time.Second,
		ShutdownTimeout:  15 * time.Second,
		KafkaTopic:       "actor-locations",
		OSRMEndpoint:     "http://router.project-osrm.org",
		Currency:         "inr",
		GeohashPrecision: 7,
		MatchMaxRings:    4,
		MatchMaxRetries:  3,
		OfferWindow:      30 * time.Second,
		QuoteTTL:         5 * time.Minute,
		AutoStart:        true,
		OutboundQueue:    32,
		LogLevel:         "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setStringFromEnv(&cfg.OSRMEndpoint, "OSRM_ENDPOINT")
	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")
	setStringFromEnv(&cfg.Currency, "PAYMENT_CURRENCY")

	setUintFromEnv(&cfg.GeohashPrecision, "GEOHASH_PRECISION", &errs)
	setIntFromEnv(&cfg.MatchMaxRings, "MATCH_MAX_RINGS", &errs)
	setIntFromEnv(&cfg.MatchMaxRetries, "MATCH_MAX_RETRIES", &errs)
	setDurationFromEnv(&cfg.OfferWindow, "MATCH_OFFER_WINDOW", &errs)
	setDurationFromEnv(&cfg.QuoteTTL, "QUOTE_TTL", &errs)
	setIntFromEnv(&cfg.OutboundQueue, "WS_OUTBOUND_QUEUE", &errs)

	if v := os.Getenv("AUTO_START_ON_ACCEPT"); v != "" {
		cfg.AutoStart = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.GeohashPrecision < 1 || cfg.GeohashPrecision > 12 {
		errs = append(errs, fmt.Errorf("GEOHASH_PRECISION must be in 1..12"))
	}
	if cfg.MatchMaxRings <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_MAX_RINGS must be > 0"))
	}
	if cfg.MatchMaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_MAX_RETRIES must be > 0"))
	}
	if cfg.OutboundQueue <= 0 {
		errs = append(errs, fmt.Errorf("WS_OUTBOUND_QUEUE must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setUintFromEnv(target *uint, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = uint(i)
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
