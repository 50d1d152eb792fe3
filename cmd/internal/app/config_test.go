package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, "secure_auth", cfg.MongoDB)
	require.True(t, cfg.MigrateOnStart)
	require.Equal(t, "public", cfg.DBSchema)
	require.True(t, cfg.MetricsEnabled)
	require.False(t, cfg.Production())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SECUREAUTH_ENV", "Production")
	t.Setenv("SECUREAUTH_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("SECUREAUTH_LOG_FORMAT", "pretty")
	t.Setenv("SECUREAUTH_CORS_ORIGINS", "https://a.example.com,http://127.0.0.1:*")
	t.Setenv("SECUREAUTH_HTTP_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.True(t, cfg.Production())
	require.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	require.Equal(t, []string{"https://a.example.com", "http://127.0.0.1:*"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"log format": {"SECUREAUTH_LOG_FORMAT": "xml"},
		"duration":   {"SECUREAUTH_HTTP_READ_TIMEOUT": "soon"},
		"max conns":  {"SECUREAUTH_DB_MAX_CONNS": "many"},
		"db schema":  {"SECUREAUTH_DB_SCHEMA": "auth; DROP TABLE users"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestPoolConfig_PinsSearchPathToSchema(t *testing.T) {
	t.Setenv("SECUREAUTH_DB_SCHEMA", "auth")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	cfg.DatabaseURL = "postgres://u:p@localhost:5432/secure_auth?sslmode=disable"

	pcfg, err := poolConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, "auth", pcfg.ConnConfig.RuntimeParams["search_path"])
	require.Equal(t, int32(10), pcfg.MaxConns)

	cfg.DatabaseURL = "postgres://u:p@localhost:5432/%zz"
	_, err = poolConfig(cfg)
	require.Error(t, err)
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("SECUREAUTH_JWT_SECRET", "")
	_, err := LoadSettings()
	require.Error(t, err, "missing jwt secret must fail")

	t.Setenv("SECUREAUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("SECUREAUTH_ENV", "production")
	t.Setenv("SECUREAUTH_COOKIE_SECURE", "false")

	s, err := LoadSettings()
	require.NoError(t, err)
	require.True(t, s.Auth.CookieSecure, "production forces secure cookies")
	require.Equal(t, "/api/v1", s.Auth.RoutePrefix)
}
