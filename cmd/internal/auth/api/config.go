package authapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/asifkhan2513/secure-auth/cmd/internal/ratelimit"
	"github.com/asifkhan2513/secure-auth/cmd/security/token"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	RoutePrefix string `env:"SECUREAUTH_ROUTE_PREFIX" envDefault:"/api/v1"`

	// CookieSecret signs the jwt cookie. Empty leaves it unsigned.
	CookieSecret string `env:"SECUREAUTH_COOKIE_SECRET"`
	CookieSecure bool   `env:"SECUREAUTH_COOKIE_SECURE"`
	CookieDomain string `env:"SECUREAUTH_COOKIE_DOMAIN"`

	TrustProxy   bool  `env:"SECUREAUTH_TRUST_PROXY"`
	MaxBodyBytes int64 `env:"SECUREAUTH_MAX_BODY_BYTES" envDefault:"1048576"`

	LoginIPMax      int           `env:"SECUREAUTH_LOGIN_IP_MAX" envDefault:"20"`
	LoginIPWindow   time.Duration `env:"SECUREAUTH_LOGIN_IP_WINDOW" envDefault:"5m"`
	LoginFailMax    int           `env:"SECUREAUTH_LOGIN_FAIL_MAX" envDefault:"5"`
	LoginFailWindow time.Duration `env:"SECUREAUTH_LOGIN_FAIL_WINDOW" envDefault:"15m"`

	OTPIPMax       int           `env:"SECUREAUTH_OTP_IP_MAX" envDefault:"10"`
	OTPIPWindow    time.Duration `env:"SECUREAUTH_OTP_IP_WINDOW" envDefault:"15m"`
	OTPEmailMax    int           `env:"SECUREAUTH_OTP_EMAIL_MAX" envDefault:"3"`
	OTPEmailWindow time.Duration `env:"SECUREAUTH_OTP_EMAIL_WINDOW" envDefault:"15m"`
	VerifyMax      int           `env:"SECUREAUTH_OTP_VERIFY_MAX" envDefault:"5"`
	VerifyWindow   time.Duration `env:"SECUREAUTH_OTP_VERIFY_WINDOW" envDefault:"15m"`
}

// DefaultConfig returns the envDefault values.
func DefaultConfig() Config {
	var cfg Config
	// Only defaults are applied; no variables are read.
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

// LoadConfigFromEnv loads auth config from environment variables.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("auth api config: %w", err)
	}
	cfg.RoutePrefix = normalizePrefix(cfg.RoutePrefix)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.RoutePrefix != "" && !strings.HasPrefix(c.RoutePrefix, "/") {
		return fmt.Errorf("SECUREAUTH_ROUTE_PREFIX: must start with /")
	}
	if c.CookieSecret != "" {
		if _, err := token.ParseSecret(c.CookieSecret, token.MinSecretBytes); err != nil {
			return fmt.Errorf("SECUREAUTH_COOKIE_SECRET: %w", err)
		}
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("SECUREAUTH_MAX_BODY_BYTES: must be positive")
	}
	for name, r := range c.Rules() {
		if r.Limit <= 0 || r.Window <= 0 {
			return fmt.Errorf("rate limit %s: limit and window must be positive", name)
		}
	}
	return nil
}

// Rules returns the rate limit rules keyed by name.
func (c Config) Rules() map[string]ratelimit.Rule {
	return map[string]ratelimit.Rule{
		RuleLoginIP:   {Limit: c.LoginIPMax, Window: c.LoginIPWindow},
		RuleLoginFail: {Limit: c.LoginFailMax, Window: c.LoginFailWindow},
		RuleOTPIP:     {Limit: c.OTPIPMax, Window: c.OTPIPWindow},
		RuleOTPEmail:  {Limit: c.OTPEmailMax, Window: c.OTPEmailWindow},
		RuleOTPVerify: {Limit: c.VerifyMax, Window: c.VerifyWindow},
	}
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	return p
}
