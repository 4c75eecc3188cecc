package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service and its
// background workers.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	OpenAIAPIKey           string
	AIModel                string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	ResponseWindow         time.Duration
	SweepInterval          time.Duration
	StuckWindow            time.Duration
	RetryInterval          time.Duration
	AggregateInterval      time.Duration
	LeaderboardCacheTTL    time.Duration
	QueueSize              int
	ExpertShare            float64
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
	v.SetEnvPrefix("VERIQ")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "VeriQ API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("cloudinary.folder", "veriq/documents")
	v.SetDefault("response_window", "3h")
	v.SetDefault("sweep_interval", "5m")
	v.SetDefault("stuck_window", "30m")
	v.SetDefault("retry_interval", "1h")
	v.SetDefault("aggregate_interval", "24h")
	v.SetDefault("leaderboard.cache_ttl", "10m")
	v.SetDefault("queue_size", 10)
	v.SetDefault("expert_share", 0.5)

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		AIModel:                v.GetString("ai.model"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		QueueSize:              v.GetInt("queue_size"),
		ExpertShare:            v.GetFloat64("expert_share"),
	}

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"response_window", "3h", &cfg.ResponseWindow},
		{"sweep_interval", "5m", &cfg.SweepInterval},
		{"stuck_window", "30m", &cfg.StuckWindow},
		{"retry_interval", "1h", &cfg.RetryInterval},
		{"aggregate_interval", "24h", &cfg.AggregateInterval},
		{"leaderboard.cache_ttl", "10m", &cfg.LeaderboardCacheTTL},
	}

	for _, d := range durations {
		raw := v.GetString(d.key)
		if raw == "" {
			raw = d.fallback
		}

		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10
	}

	if cfg.ExpertShare <= 0 || cfg.ExpertShare > 1 {
		return Config{}, fmt.Errorf("expert share must be in (0, 1], got %v", cfg.ExpertShare)
	}

	return cfg, nil
}
