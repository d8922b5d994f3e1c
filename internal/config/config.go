package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const PROD_STRING = "prod"

var (
	ErrDBDSNRequired     = errors.New("DB_DSN is required")
	ErrJWTSecretRequired = errors.New("JWT_SECRET is required")
)

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction      bool
	ProdOrigins       string
	HTTPAddr          string
	DBDSN             string
	DBMaxConns        int32
	JWTSecret         string
	JWTAccessTokenTTL time.Duration
	DefaultTimezone   *time.Location
	SlotSearchHorizon time.Duration
	ShutdownTimeout   time.Duration
	LogLevel          zapcore.Level
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("PROD_ORIGINS", "")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("DEFAULT_TIMEZONE", "UTC")
	v.SetDefault("SLOT_SEARCH_HORIZON", "720h")
	v.SetDefault("SHUTDOWN_TIMEOUT", "5s")
	v.SetDefault("LOG_LEVEL", "info")
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return FromViper(v)
}

// FromViper builds the configuration from an already populated viper
// instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		IsProduction: v.GetString("APP_ENV") == PROD_STRING,
		ProdOrigins:  v.GetString("PROD_ORIGINS"),
		HTTPAddr:     v.GetString("HTTP_ADDR"),
		DBDSN:        v.GetString("DB_DSN"),
		JWTSecret:    v.GetString("JWT_SECRET"),
	}

	if cfg.DBDSN == "" {
		return nil, ErrDBDSNRequired
	}
	if cfg.JWTSecret == "" {
		return nil, ErrJWTSecretRequired
	}

	maxConns := v.GetInt("DB_MAX_CONNS")
	if maxConns < 1 {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %d", maxConns)
	}
	cfg.DBMaxConns = int32(maxConns)

	var err error
	if cfg.JWTAccessTokenTTL, err = duration(v, "JWT_ACCESS_TOKEN_TTL"); err != nil {
		return nil, err
	}
	if cfg.SlotSearchHorizon, err = duration(v, "SLOT_SEARCH_HORIZON"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = duration(v, "SHUTDOWN_TIMEOUT"); err != nil {
		return nil, err
	}

	if cfg.DefaultTimezone, err = time.LoadLocation(v.GetString("DEFAULT_TIMEZONE")); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE: %w", err)
	}

	if cfg.LogLevel, err = zapcore.ParseLevel(v.GetString("LOG_LEVEL")); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// duration parses a Go duration string such as "15m" or "720h".
func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration %q", key, raw)
	}
	return d, nil
}
