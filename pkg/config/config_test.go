package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, ModeREPL, cfg.Mode)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 300*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, SettingsBackendFile, cfg.Settings.Backend)
	assert.Equal(t, "school_console.sort", cfg.Settings.Key)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestOverridesTrimAndFallback(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("API_BASE_URL", "http://records.local/")
	v.Set("SEARCH_DEBOUNCE", "not-a-duration")
	v.Set("SETTINGS_BACKEND", "Redis")
	v.Set("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	cfg := fromViper(v)

	assert.Equal(t, "http://records.local", cfg.API.BaseURL)
	assert.Equal(t, 300*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, SettingsBackendRedis, cfg.Settings.Backend)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestValidateRejectsSettingsInsideExportDir(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)
	assert.NoError(t, cfg.Validate())

	cfg.Settings.Dir = "./exports/"
	assert.Error(t, cfg.Validate())

	cfg.Settings.Dir = "exports/settings"
	assert.Error(t, cfg.Validate())

	cfg.Settings.Dir = "./exports-settings"
	assert.NoError(t, cfg.Validate())

	cfg.Settings.Dir = "./exports"
	cfg.Settings.Backend = SettingsBackendRedis
	assert.NoError(t, cfg.Validate())
}
