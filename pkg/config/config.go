package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Console run modes.
const (
	ModeREPL  = "repl"
	ModeServe = "serve"
)

// Settings storage backends.
const (
	SettingsBackendFile     = "file"
	SettingsBackendRedis    = "redis"
	SettingsBackendPostgres = "postgres"
)

type Config struct {
	Env  string
	Mode string
	Port int

	API      APIConfig
	Search   SearchConfig
	Settings SettingsConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Exports  ExportsConfig
	CORS     CORSConfig
	Log      LogConfig
}

// APIConfig points the gateway at the school-records backend.
type APIConfig struct {
	BaseURL      string
	Timeout      time.Duration
	TokenSecret  string
	TokenSubject string
	TokenTTL     time.Duration
}

// SearchConfig tunes the type-ahead search input.
type SearchConfig struct {
	Debounce time.Duration
}

// SettingsConfig selects where the sort preference is persisted.
type SettingsConfig struct {
	Backend string
	Dir     string
	Key     string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ExportsConfig controls where export files land and how download links are signed.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the console cannot run with.
// The export sweeper deletes stale files under EXPORT_DIR, so a file-backed
// settings directory must live outside it.
func (c *Config) Validate() error {
	if c.Settings.Backend != SettingsBackendFile {
		return nil
	}
	settingsDir, err := filepath.Abs(c.Settings.Dir)
	if err != nil {
		return fmt.Errorf("resolve SETTINGS_DIR: %w", err)
	}
	exportDir, err := filepath.Abs(c.Exports.StorageDir)
	if err != nil {
		return fmt.Errorf("resolve EXPORT_DIR: %w", err)
	}
	rel, err := filepath.Rel(exportDir, settingsDir)
	if err != nil {
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return fmt.Errorf("SETTINGS_DIR %q must not be inside EXPORT_DIR %q", c.Settings.Dir, c.Exports.StorageDir)
	}
	return nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Mode = strings.ToLower(v.GetString("CONSOLE_MODE"))
	cfg.Port = v.GetInt("CONSOLE_PORT")

	cfg.API = APIConfig{
		BaseURL:      strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		Timeout:      parseDuration(v.GetString("API_TIMEOUT"), 10*time.Second),
		TokenSecret:  v.GetString("API_TOKEN_SECRET"),
		TokenSubject: v.GetString("API_TOKEN_SUBJECT"),
		TokenTTL:     parseDuration(v.GetString("API_TOKEN_TTL"), 5*time.Minute),
	}

	cfg.Search = SearchConfig{
		Debounce: parseDuration(v.GetString("SEARCH_DEBOUNCE"), 300*time.Millisecond),
	}

	cfg.Settings = SettingsConfig{
		Backend: strings.ToLower(v.GetString("SETTINGS_BACKEND")),
		Dir:     v.GetString("SETTINGS_DIR"),
		Key:     v.GetString("SETTINGS_KEY"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORT_DIR"),
		SignedURLSecret: v.GetString("EXPORT_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORT_SIGNED_URL_TTL"), 15*time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
		Output: v.GetString("LOG_OUTPUT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("CONSOLE_MODE", ModeREPL)
	v.SetDefault("CONSOLE_PORT", 8090)

	v.SetDefault("API_BASE_URL", "http://localhost:8000")
	v.SetDefault("API_TIMEOUT", "10s")
	v.SetDefault("API_TOKEN_SECRET", "")
	v.SetDefault("API_TOKEN_SUBJECT", "admin-console")
	v.SetDefault("API_TOKEN_TTL", "5m")

	v.SetDefault("SEARCH_DEBOUNCE", "300ms")

	v.SetDefault("SETTINGS_BACKEND", SettingsBackendFile)
	v.SetDefault("SETTINGS_DIR", "./.console")
	v.SetDefault("SETTINGS_KEY", "school_console.sort")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_console")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 4)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORT_SIGNED_URL_TTL", "15m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_OUTPUT", "stderr")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
