package config

import (
	"os"
	"strings"
)

// Config is read from the environment once at startup.
type Config struct {
	ListenAddr     string
	CommerceAPIURL string
	DataDir        string
	RedisAddr      string
	KafkaBrokers   []string
	KafkaTopic     string
}

func Load() Config {
	return Config{
		ListenAddr:     getenv("LISTEN_ADDR", ":8090"),
		CommerceAPIURL: getenv("COMMERCE_API_URL", "http://localhost:7025"),
		DataDir:        getenv("DATA_DIR", "data"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getenv("KAFKA_TOPIC", "order-events"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
