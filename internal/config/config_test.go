package config

import (
	"testing"
	"time"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.GeohashPrecision != 7 || cfg.MatchMaxRings != 4 || cfg.MatchMaxRetries != 3 {
		t.Fatalf("matching defaults = %d/%d/%d", cfg.GeohashPrecision, cfg.MatchMaxRings, cfg.MatchMaxRetries)
	}
	if cfg.OfferWindow != 30*time.Second || cfg.QuoteTTL != 5*time.Minute {
		t.Fatalf("window defaults = %v/%v", cfg.OfferWindow, cfg.QuoteTTL)
	}
	if !cfg.AutoStart {
		t.Fatal("AutoStart should default on")
	}
}

func TestLoadServerConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("MATCH_OFFER_WINDOW", "10s")
	t.Setenv("MATCH_MAX_RETRIES", "5")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("AUTO_START_ON_ACCEPT", "false")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.OfferWindow != 10*time.Second || cfg.MatchMaxRetries != 5 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.AutoStart {
		t.Fatal("AutoStart should be off")
	}
}

func TestLoadServerConfigCollectsErrors(t *testing.T) {
	t.Setenv("MATCH_OFFER_WINDOW", "soon")
	t.Setenv("GEOHASH_PRECISION", "99")

	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected validation errors")
	}
}
