package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SWEEP_COOLDOWN", "")
	t.Setenv("INSTITUTION_UTC_OFFSET", "")
	t.Setenv("GLOBAL_PIN", "")

	cfg := Load()

	assert.Equal(t, time.Hour, cfg.SweepCooldown)
	assert.Equal(t, "+05:30", cfg.UTCOffset)
	assert.Equal(t, "1945", cfg.GlobalPIN)
	assert.False(t, cfg.Production())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("SWEEP_COOLDOWN", "90s")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg := Load()

	assert.True(t, cfg.Production())
	assert.Equal(t, 90*time.Second, cfg.SweepCooldown)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SWEEP_COOLDOWN", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "many")
	t.Setenv("AUTO_MIGRATE", "maybe")

	cfg := Load()

	assert.Equal(t, time.Hour, cfg.SweepCooldown)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.True(t, cfg.AutoMigrate)
}
