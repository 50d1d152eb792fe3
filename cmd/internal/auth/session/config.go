package session

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/asifkhan2513/secure-auth/cmd/security/token"
)

// Config defines runtime configuration for token issuance.
type Config struct {
	// Secret is the HS256 key. At least token.MinSecretBytes long.
	Secret []byte

	// Issuer is written to and required in the "iss" claim.
	Issuer string

	// TTL is the token lifetime.
	TTL time.Duration

	// ClockSkew is the leeway applied to exp, nbf and iat checks.
	ClockSkew time.Duration
}

// DefaultConfig returns everything except the secret.
func DefaultConfig() Config {
	return Config{
		Issuer:    "secure-auth",
		TTL:       30 * 24 * time.Hour,
		ClockSkew: 30 * time.Second,
	}
}

type envConfig struct {
	Secret    string        `env:"SECUREAUTH_JWT_SECRET"`
	Issuer    string        `env:"SECUREAUTH_JWT_ISSUER"`
	TTL       time.Duration `env:"SECUREAUTH_JWT_TTL"`
	ClockSkew time.Duration `env:"SECUREAUTH_JWT_CLOCK_SKEW"`
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - SECUREAUTH_JWT_SECRET (at least 32 bytes after trimming)
//
// Optional (durations are Go duration strings):
//   - SECUREAUTH_JWT_ISSUER
//   - SECUREAUTH_JWT_TTL
//   - SECUREAUTH_JWT_CLOCK_SKEW
//
// Every failure wraps ErrConfig.
func LoadConfigFromEnv() (Config, error) {
	def := DefaultConfig()
	raw := envConfig{
		Issuer:    def.Issuer,
		TTL:       def.TTL,
		ClockSkew: def.ClockSkew,
	}
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	secret, err := token.ParseSecret(raw.Secret, token.MinSecretBytes)
	if err != nil {
		return Config{}, fmt.Errorf("%w: SECUREAUTH_JWT_SECRET: %v", ErrConfig, err)
	}

	cfg := Config{
		Secret:    secret,
		Issuer:    raw.Issuer,
		TTL:       raw.TTL,
		ClockSkew: raw.ClockSkew,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants; it is also applied by NewManager.
func (c Config) Validate() error {
	switch {
	case len(c.Secret) < token.MinSecretBytes:
		return fmt.Errorf("%w: secret shorter than %d bytes", ErrConfig, token.MinSecretBytes)
	case c.Issuer == "":
		return fmt.Errorf("%w: empty issuer", ErrConfig)
	case c.TTL <= 0:
		return fmt.Errorf("%w: ttl must be positive", ErrConfig)
	case c.ClockSkew < 0 || c.ClockSkew > 5*time.Minute:
		return fmt.Errorf("%w: clock skew out of range [0..5m]", ErrConfig)
	}
	return nil
}
