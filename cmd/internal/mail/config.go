// Package mail delivers transactional email: a gomail SMTP sender, the
// verification template and an asynchronous dispatcher that keeps SMTP off
// the request path.
package mail

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds SMTP and dispatcher settings.
type Config struct {
	Host string `env:"SECUREAUTH_MAIL_HOST"`
	Port int    `env:"SECUREAUTH_MAIL_PORT" envDefault:"587"`
	User string `env:"SECUREAUTH_MAIL_USER"`
	Pass string `env:"SECUREAUTH_MAIL_PASS"`
	From string `env:"SECUREAUTH_MAIL_FROM"`

	BufferSize  int           `env:"SECUREAUTH_MAIL_BUFFER" envDefault:"256"`
	SendTimeout time.Duration `env:"SECUREAUTH_MAIL_SEND_TIMEOUT" envDefault:"15s"`
}

// Enabled reports whether enough is configured to talk to an SMTP server.
func (c Config) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// LoadConfigFromEnv parses SECUREAUTH_MAIL_*.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("mail config: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("mail config: SECUREAUTH_MAIL_PORT out of range")
	}
	if cfg.BufferSize <= 0 {
		return Config{}, fmt.Errorf("mail config: SECUREAUTH_MAIL_BUFFER must be positive")
	}
	if cfg.SendTimeout <= 0 {
		return Config{}, fmt.Errorf("mail config: SECUREAUTH_MAIL_SEND_TIMEOUT must be positive")
	}
	if cfg.Host != "" && cfg.From == "" {
		return Config{}, fmt.Errorf("mail config: SECUREAUTH_MAIL_FROM is required with SECUREAUTH_MAIL_HOST")
	}
	return cfg, nil
}
