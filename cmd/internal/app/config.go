package app

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	authapi "github.com/asifkhan2513/secure-auth/cmd/internal/auth/api"
	"github.com/asifkhan2513/secure-auth/cmd/internal/auth/otp"
	"github.com/asifkhan2513/secure-auth/cmd/internal/auth/session"
	"github.com/asifkhan2513/secure-auth/cmd/internal/mail"
	"github.com/asifkhan2513/secure-auth/cmd/security/password"
)

// Config contains process-level runtime configuration loaded from environment variables.
type Config struct {
	Env       string `env:"SECUREAUTH_ENV" envDefault:"development"`
	HTTPAddr  string `env:"SECUREAUTH_HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel  string `env:"SECUREAUTH_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"SECUREAUTH_LOG_FORMAT" envDefault:"json"`

	ReadHeaderTimeout time.Duration `env:"SECUREAUTH_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"SECUREAUTH_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"SECUREAUTH_HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"SECUREAUTH_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"SECUREAUTH_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxHeaderBytes    int           `env:"SECUREAUTH_HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	// Users live in MongoDB when MongoURI is set, otherwise in Postgres when
	// DatabaseURL is set, otherwise in memory.
	DatabaseURL    string `env:"SECUREAUTH_DATABASE_URL"`
	DBMaxConns     int32  `env:"SECUREAUTH_DB_MAX_CONNS" envDefault:"10"`
	DBMinConns     int32  `env:"SECUREAUTH_DB_MIN_CONNS" envDefault:"0"`
	MigrateOnStart bool   `env:"SECUREAUTH_DB_MIGRATE" envDefault:"true"`
	// DBSchema is both the pool's search_path and the schema the user store
	// queries, so migrations and reads always meet in the same place.
	DBSchema string `env:"SECUREAUTH_DB_SCHEMA" envDefault:"public"`

	MongoURI string `env:"SECUREAUTH_MONGO_URI"`
	MongoDB  string `env:"SECUREAUTH_MONGO_DB" envDefault:"secure_auth"`

	// Codes and rate limits live in Redis when RedisURL is set.
	RedisURL string `env:"SECUREAUTH_REDIS_URL"`

	// If true, /readyz returns 503 while running on the in-memory user store.
	ReadinessRequireStore bool `env:"SECUREAUTH_READINESS_REQUIRE_STORE"`

	CORSAllowedOrigins   []string `env:"SECUREAUTH_CORS_ORIGINS" envSeparator:","`
	CORSAllowCredentials bool     `env:"SECUREAUTH_CORS_CREDENTIALS" envDefault:"true"`
	CORSMaxAgeSeconds    int      `env:"SECUREAUTH_CORS_MAX_AGE" envDefault:"600"`

	MetricsEnabled bool `env:"SECUREAUTH_METRICS" envDefault:"true"`
}

// Production reports whether SECUREAUTH_ENV names a production deployment.
func (c Config) Production() bool {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "production", "prod":
		return true
	}
	return false
}

var schemaIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("app config: %w", err)
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "pretty", "text":
	default:
		return Config{}, fmt.Errorf("app config: SECUREAUTH_LOG_FORMAT must be json, text or pretty")
	}
	if !schemaIdentRe.MatchString(cfg.DBSchema) {
		return Config{}, fmt.Errorf("app config: SECUREAUTH_DB_SCHEMA must be a plain SQL identifier")
	}
	return cfg, nil
}

// Settings is every package's configuration, built once at startup and not
// modified afterwards.
type Settings struct {
	App      Config
	Auth     authapi.Config
	Session  session.Config
	OTP      otp.Config
	Mail     mail.Config
	Password password.Config
}

// LoadSettings reads all configuration from the environment. A missing or
// short SECUREAUTH_JWT_SECRET fails here.
func LoadSettings() (Settings, error) {
	var (
		s   Settings
		err error
	)
	if s.App, err = LoadConfig(); err != nil {
		return Settings{}, err
	}
	if s.Auth, err = authapi.LoadConfigFromEnv(); err != nil {
		return Settings{}, err
	}
	if s.Session, err = session.LoadConfigFromEnv(); err != nil {
		return Settings{}, err
	}
	if s.OTP, err = otp.LoadConfigFromEnv(); err != nil {
		return Settings{}, err
	}
	if s.Mail, err = mail.LoadConfigFromEnv(); err != nil {
		return Settings{}, err
	}
	if s.Password, err = password.FromEnv(); err != nil {
		return Settings{}, err
	}

	// Cookies are always Secure in production.
	if s.App.Production() {
		s.Auth.CookieSecure = true
	}
	return s, nil
}
