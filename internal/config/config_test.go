package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		MaxAttempts:             3,
		MarkerConcurrency:       2,
		NotificationConcurrency: 2,
		DefaultConcurrency:      4,
		MaxFeaturePoints:        1000,
		RetryInitialDelay:       30 * time.Second,
		RetryMaxDelay:           10 * time.Minute,
		ExpirationLookahead:     168 * time.Hour,
		NotificationCooldown:    24 * time.Hour,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero max attempts", func(c *Config) { c.MaxAttempts = 0 }, "max attempts"},
		{"zero marker concurrency", func(c *Config) { c.MarkerConcurrency = 0 }, "lane concurrency"},
		{"zero notification concurrency", func(c *Config) { c.NotificationConcurrency = 0 }, "lane concurrency"},
		{"zero default concurrency", func(c *Config) { c.DefaultConcurrency = 0 }, "lane concurrency"},
		{"zero feature points", func(c *Config) { c.MaxFeaturePoints = 0 }, "feature points"},
		{"zero initial delay", func(c *Config) { c.RetryInitialDelay = 0 }, "retry delay"},
		{"inverted retry bounds", func(c *Config) { c.RetryMaxDelay = time.Second }, "retry delay"},
		{"zero lookahead", func(c *Config) { c.ExpirationLookahead = 0 }, "lookahead"},
		{"zero cooldown", func(c *Config) { c.NotificationCooldown = 0 }, "cooldown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
