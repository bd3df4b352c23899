// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq background worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetFleetSyncCron() string
}

// ScoringConfig provides settings for the scoring engine.
// Weights are keyed by scoring dimension and must sum to 100 so the
// weighted score lands in [0,100] by construction.
type ScoringConfig interface {
	GetScoringWeights() map[string]float64
	GetFleetSyncParallelism() int
}

// ConversionsConfig provides settings for the outbound conversion-event pixel.
type ConversionsConfig interface {
	IsConversionsEnabled() bool
	GetConversionsEndpoint() string
	GetPixelID() string
	GetPixelToken() string
	GetConversionsRatePerMinute() float64
	GetPhoneRegion() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env            string
	HTTPAddr       string
	DatabaseURL    string
	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	FleetSyncCron    string

	ScoringWeights       map[string]float64
	FleetSyncParallelism int

	ConversionsEnabled       bool
	ConversionsEndpoint      string
	PixelID                  string
	PixelToken               string
	ConversionsRatePerMinute float64
	PhoneRegion              string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetFleetSyncCron() string  { return c.FleetSyncCron }

// ScoringConfig implementation
func (c *Config) GetScoringWeights() map[string]float64 { return c.ScoringWeights }
func (c *Config) GetFleetSyncParallelism() int          { return c.FleetSyncParallelism }

// ConversionsConfig implementation
func (c *Config) IsConversionsEnabled() bool           { return c.ConversionsEnabled && c.PixelID != "" }
func (c *Config) GetConversionsEndpoint() string       { return c.ConversionsEndpoint }
func (c *Config) GetPixelID() string                   { return c.PixelID }
func (c *Config) GetPixelToken() string                { return c.PixelToken }
func (c *Config) GetConversionsRatePerMinute() float64 { return c.ConversionsRatePerMinute }
func (c *Config) GetPhoneRegion() string               { return c.PhoneRegion }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	weights := map[string]float64{
		"service":   mustFloat(getEnv("SCORING_WEIGHT_SERVICE", "20")),
		"adSetName": mustFloat(getEnv("SCORING_WEIGHT_AD_SET_NAME", "20")),
		"adName":    mustFloat(getEnv("SCORING_WEIGHT_AD_NAME", "20")),
		"leadDate":  mustFloat(getEnv("SCORING_WEIGHT_LEAD_DATE", "20")),
		"zip":       mustFloat(getEnv("SCORING_WEIGHT_ZIP", "20")),
	}

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "scoring"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		FleetSyncCron:    getEnv("FLEET_SYNC_CRON", "0 3 * * 1"),

		ScoringWeights:       weights,
		FleetSyncParallelism: mustInt(getEnv("FLEET_SYNC_PARALLELISM", "1")),

		ConversionsEnabled:       strings.EqualFold(getEnv("CONVERSIONS_ENABLED", "false"), "true"),
		ConversionsEndpoint:      getEnv("CONVERSIONS_ENDPOINT", ""),
		PixelID:                  getEnv("CONVERSIONS_PIXEL_ID", ""),
		PixelToken:               getEnv("CONVERSIONS_PIXEL_TOKEN", ""),
		ConversionsRatePerMinute: mustFloat(getEnv("CONVERSIONS_RATE_PER_MINUTE", "60")),
		PhoneRegion:              getEnv("PHONE_REGION", "US"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var weightSum float64
	for _, w := range cfg.ScoringWeights {
		if w < 0 {
			return nil, fmt.Errorf("scoring weights must be non-negative")
		}
		weightSum += w
	}
	if weightSum < 99.999 || weightSum > 100.001 {
		return nil, fmt.Errorf("scoring weights must sum to 100, got %.2f", weightSum)
	}

	if cfg.FleetSyncParallelism < 1 {
		cfg.FleetSyncParallelism = 1
	}
	if cfg.ConversionsEnabled && cfg.ConversionsEndpoint == "" {
		return nil, fmt.Errorf("CONVERSIONS_ENDPOINT is required when CONVERSIONS_ENABLED is true")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
