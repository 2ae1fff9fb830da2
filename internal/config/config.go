package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NatsURL          string
	AuditSubject     string
	JWTSecret        string
	ScoreCacheTTL    time.Duration
	DeadlineInterval time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ARBITER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Arbiter API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("audit.subject", "arbiter.audit")
	v.SetDefault("score.cache_ttl", "5s")
	v.SetDefault("deadline.interval", "500ms")

	ttl, err := time.ParseDuration(v.GetString("score.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid score cache ttl: %w", err)
	}

	interval, err := time.ParseDuration(v.GetString("deadline.interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid deadline poll interval: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NatsURL:          v.GetString("nats.url"),
		AuditSubject:     v.GetString("audit.subject"),
		JWTSecret:        v.GetString("jwt.secret"),
		ScoreCacheTTL:    ttl,
		DeadlineInterval: interval,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}
