package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port            int
	DatabaseURL     string
	LogLevel        string
	OllamaURL       string
	OllamaModel     string
	FallbackTimeout int
	NatsURL         string
	NatsToken       string
}

func Load() Config {
	return Config{
		Port:            envInt("TALLY_PORT", 8640),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		OllamaURL:       envStr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:     envStr("OLLAMA_MODEL", "gemma:2b"),
		FallbackTimeout: envInt("TALLY_FALLBACK_TIMEOUT", 5),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
