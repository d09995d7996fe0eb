package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/AuraReaper/voom/internal/geo"
	"github.com/AuraReaper/voom/internal/ingest"
	"github.com/AuraReaper/voom/internal/logging"
	"github.com/AuraReaper/voom/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total location messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	indexUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_index_updates_total",
		Help: "Total successful geohash index updates",
	})
	indexErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_index_errors_total",
		Help: "Total geohash index errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, indexUpdates, indexErrors)
}

// The consumer maintains the shared Redis geohash index from the location
// topic, so dispatch servers can scale out without each owning the index.
func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	logger := logging.NewLogger("location-consumer", os.Getenv("LOG_LEVEL"))

	brokers := splitBrokers(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "actor-locations"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "voom-location-consumer"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rc := redis.NewClient(&redis.Options{Addr: redisAddr, Password: os.Getenv("REDIS_PASSWORD")})
	index := geo.NewRedisIndexFromClient(rc, precisionFromEnv())

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer started", "topic", topic, "brokers", brokers, "group", group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			if !waitOrDone(ctx, backoff) {
				logger.Info("shutting down consumer")
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		msgsConsumed.Inc()

		var rec ingest.LocationRecord
		if err := json.Unmarshal(m.Value, &rec); err != nil || rec.ActorID == "" {
			msgsInvalid.Inc()
			logger.Warn("invalid location record", "error", err)
			continue
		}

		if err := updateIndexWithRetry(ctx, index, rec.ActorID, rec.Location, 3, 200*time.Millisecond); err != nil {
			indexErrors.Inc()
			logger.Error("index update failed", "actor_id", rec.ActorID, "error", err)
			continue
		}
		indexUpdates.Inc()
	}
}

// GeoUpserter is the slice of the index the retry path needs; tests
// substitute a fake.
type GeoUpserter interface {
	Upsert(ctx context.Context, actorID string, c models.Coordinate) (string, error)
}

// updateIndexWithRetry applies one index update with bounded exponential
// backoff.
func updateIndexWithRetry(ctx context.Context, index GeoUpserter, actorID string, c models.Coordinate, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if _, err = index.Upsert(ctx, actorID, c); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

// waitOrDone sleeps for d unless the context ends first; it reports whether
// the full wait elapsed. Keeps shutdown prompt mid-backoff.
func waitOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func splitBrokers(v string) []string {
	var out []string
	for _, b := range strings.Split(v, ",") {
		if s := strings.TrimSpace(b); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func precisionFromEnv() uint {
	if v := os.Getenv("GEOHASH_PRECISION"); v != "" {
		if p, err := strconv.ParseUint(v, 10, 32); err == nil && p >= 1 && p <= 12 {
			return uint(p)
		}
	}
	return geo.DefaultPrecision
}
