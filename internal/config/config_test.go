package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestFromViperDefaults(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{
		"DB_DSN":     "postgres://localhost/booking",
		"JWT_SECRET": "secret",
	}))
	require.NoError(t, err)

	assert.False(t, cfg.IsProduction)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTokenTTL)
	assert.Equal(t, time.UTC.String(), cfg.DefaultTimezone.String())
	assert.Equal(t, 720*time.Hour, cfg.SlotSearchHorizon)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
}

func TestFromViperOverrides(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{
		"APP_ENV":             "prod",
		"DB_DSN":              "postgres://localhost/booking",
		"JWT_SECRET":          "secret",
		"SLOT_SEARCH_HORIZON": "48h",
		"LOG_LEVEL":           "debug",
		"DB_MAX_CONNS":        "25",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction)
	assert.Equal(t, 48*time.Hour, cfg.SlotSearchHorizon)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
	assert.Equal(t, int32(25), cfg.DBMaxConns)
}

func TestFromViperErrors(t *testing.T) {
	base := map[string]any{"DB_DSN": "postgres://localhost/booking", "JWT_SECRET": "secret"}
	with := func(k string, v any) map[string]any {
		out := map[string]any{}
		for key, val := range base {
			out[key] = val
		}
		out[k] = v
		return out
	}

	tests := []struct {
		name    string
		values  map[string]any
		wantErr error
	}{
		{name: "missing dsn", values: with("DB_DSN", ""), wantErr: ErrDBDSNRequired},
		{name: "missing secret", values: with("JWT_SECRET", ""), wantErr: ErrJWTSecretRequired},
		{name: "bad horizon", values: with("SLOT_SEARCH_HORIZON", "forever")},
		{name: "negative timeout", values: with("SHUTDOWN_TIMEOUT", "-1s")},
		{name: "unknown timezone", values: with("DEFAULT_TIMEZONE", "Mars/Olympus")},
		{name: "unknown log level", values: with("LOG_LEVEL", "chatty")},
		{name: "zero connections", values: with("DB_MAX_CONNS", 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromViper(newViper(tt.values))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
