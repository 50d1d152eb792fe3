package otp

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls code shape, lifetime and the regeneration bound.
type Config struct {
	TTL         time.Duration `env:"SECUREAUTH_OTP_TTL" envDefault:"5m"`
	Length      int           `env:"SECUREAUTH_OTP_LENGTH" envDefault:"6"`
	MaxAttempts int           `env:"SECUREAUTH_OTP_MAX_ATTEMPTS" envDefault:"16"`

	// EchoCode returns the code in the /sendotp response. Local development only.
	EchoCode bool `env:"SECUREAUTH_OTP_ECHO_CODE" envDefault:"false"`

	// RedisPrefix namespaces Redis keys.
	RedisPrefix string `env:"SECUREAUTH_OTP_REDIS_PREFIX" envDefault:"secureauth:otp"`
}

// DefaultConfig matches the envDefault tags.
func DefaultConfig() Config {
	return Config{
		TTL:         5 * time.Minute,
		Length:      6,
		MaxAttempts: 16,
		RedisPrefix: "secureauth:otp",
	}
}

// LoadConfigFromEnv parses SECUREAUTH_OTP_* and validates the result.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.TTL < time.Minute || c.TTL > 24*time.Hour:
		return fmt.Errorf("%w: ttl %s out of range [1m..24h]", ErrConfig, c.TTL)
	case c.Length < 4 || c.Length > 10:
		return fmt.Errorf("%w: length %d out of range [4..10]", ErrConfig, c.Length)
	case c.MaxAttempts < 1 || c.MaxAttempts > 1000:
		return fmt.Errorf("%w: max attempts %d out of range [1..1000]", ErrConfig, c.MaxAttempts)
	case c.RedisPrefix == "":
		return fmt.Errorf("%w: empty redis prefix", ErrConfig)
	}
	return nil
}
