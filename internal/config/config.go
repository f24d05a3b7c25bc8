package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the assessment engine.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	EventSubjectBase string
	WorkflowCacheTTL time.Duration
	StaffOverride    bool
	PeerClaimTTL     time.Duration
	PeerClaimRetries int
	AIProvider       string
	AIModel          string
	OpenAIAPIKey     string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env
// file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ORA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "ORA API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.subject_base", "ora")
	v.SetDefault("workflow.cache_ttl", "30s")
	v.SetDefault("workflow.staff_override", true)
	v.SetDefault("peer.claim_ttl", "8h")
	v.SetDefault("peer.claim_retries", 3)
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")

	cacheTTL, err := time.ParseDuration(v.GetString("workflow.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid workflow cache ttl: %w", err)
	}

	claimTTL, err := time.ParseDuration(v.GetString("peer.claim_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid peer claim ttl: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		EventSubjectBase: v.GetString("events.subject_base"),
		WorkflowCacheTTL: cacheTTL,
		StaffOverride:    v.GetBool("workflow.staff_override"),
		PeerClaimTTL:     claimTTL,
		PeerClaimRetries: v.GetInt("peer.claim_retries"),
		AIProvider:       strings.ToLower(v.GetString("ai.provider")),
		AIModel:          v.GetString("ai.model"),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.PeerClaimRetries <= 0 {
		cfg.PeerClaimRetries = 3
	}

	return cfg, nil
}
