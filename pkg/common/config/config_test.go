package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("ONTOLOGY_CACHE_TTL", "")

	cfg := Load()
	if cfg.OntologyCacheTTL != 24*time.Hour {
		t.Fatalf("expected default cache ttl, got %s", cfg.OntologyCacheTTL)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "localhost:9092" {
		t.Fatalf("unexpected default brokers %v", cfg.KafkaBrokers)
	}
	if DefaultCreator() != "phenoxtract-"+Version {
		t.Fatalf("unexpected creator %q", DefaultCreator())
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("ONTOLOGY_CACHE_ENABLED", "true")
	t.Setenv("VOCABULARY_TIMEOUT", "2s")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("expected two brokers, got %v", cfg.KafkaBrokers)
	}
	if !cfg.OntologyCacheEnabled {
		t.Fatalf("expected cache enabled")
	}
	if cfg.VocabularyTimeout != 2*time.Second {
		t.Fatalf("expected 2s timeout, got %s", cfg.VocabularyTimeout)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.RedisDB)
	}
}
