package mail

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SECUREAUTH_MAIL_HOST", "smtp.example.com")
	t.Setenv("SECUREAUTH_MAIL_PORT", "2525")
	t.Setenv("SECUREAUTH_MAIL_FROM", "noreply@example.com")
	t.Setenv("SECUREAUTH_MAIL_SEND_TIMEOUT", "5s")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if !cfg.Enabled() || cfg.Port != 2525 || cfg.SendTimeout != 5*time.Second || cfg.BufferSize != 256 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_DisabledByDefault(t *testing.T) {
	t.Setenv("SECUREAUTH_MAIL_HOST", "")
	t.Setenv("SECUREAUTH_MAIL_FROM", "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Enabled() {
		t.Fatalf("mail should be disabled without a host")
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := []map[string]string{
		{"SECUREAUTH_MAIL_PORT": "70000"},
		{"SECUREAUTH_MAIL_PORT": "smtp"},
		{"SECUREAUTH_MAIL_BUFFER": "0"},
		{"SECUREAUTH_MAIL_HOST": "smtp.example.com", "SECUREAUTH_MAIL_FROM": ""},
	}
	for _, env := range cases {
		t.Run("", func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfigFromEnv(); err == nil {
				t.Fatalf("expected error for %v", env)
			}
		})
	}
}
