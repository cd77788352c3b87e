package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, time.Hour, cfg.Settings.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.Calendar.TxTimeout)
	assert.Equal(t, 20, cfg.Calendar.MinReasonLength)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, AuditConfig{Workers: 2, BufferSize: 1024, MaxRetries: 3}, cfg.Audit)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("CALENDAR_TX_TIMEOUT", "750ms")
	v.Set("CALENDAR_MIN_REASON_LENGTH", 0)
	v.Set("SETTINGS_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := fromViper(v)
	assert.Equal(t, 750*time.Millisecond, cfg.Calendar.TxTimeout)
	assert.Equal(t, 20, cfg.Calendar.MinReasonLength)
	assert.Equal(t, time.Hour, cfg.Settings.CacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
