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
	NATSURL          string
	JWTSecret        string
	EventChannel     string
	StatusCacheTTL   time.Duration
	InferenceTimeout time.Duration
	SweepInterval    time.Duration
	SweepLimit       int
	OpenAIAPIKey     string
	SeedEnabled      bool
	SeedToken        string
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
	v.SetEnvPrefix("EVALIO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Evalio API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("event.channel", "evalio.submissions.status")
	v.SetDefault("status.cache_ttl", "1h")
	v.SetDefault("inference.timeout", "120s")
	v.SetDefault("sweep.interval", "0s")
	v.SetDefault("sweep.limit", 10)

	statusTTL, err := time.ParseDuration(v.GetString("status.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid status cache ttl: %w", err)
	}

	inferenceTimeout, err := time.ParseDuration(v.GetString("inference.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid inference timeout: %w", err)
	}

	sweepInterval, err := time.ParseDuration(v.GetString("sweep.interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid sweep interval: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		EventChannel:     v.GetString("event.channel"),
		StatusCacheTTL:   statusTTL,
		InferenceTimeout: inferenceTimeout,
		SweepInterval:    sweepInterval,
		SweepLimit:       v.GetInt("sweep.limit"),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		SeedEnabled:      v.GetBool("seed.enabled"),
		SeedToken:        v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SweepLimit <= 0 {
		cfg.SweepLimit = 10
	}

	return cfg, nil
}
