package password

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls which plaintexts are accepted for hashing.
type Policy struct {
	MinLength int
	MaxLength int
	// RejectVeryWeak enables a minimal blocklist of trivial passwords.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
// It is built once at startup and passed by value; it carries no mutable state.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns interactive-login cost parameters and an 8..256 rune policy.
func DefaultConfig() Config {
	// Parallelism follows the host but stays within [1..4] so containers remain predictable.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      8,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

type envOverrides struct {
	MinLength      int    `env:"SECUREAUTH_PASSWORD_MIN_LEN"`
	MaxLength      int    `env:"SECUREAUTH_PASSWORD_MAX_LEN"`
	RejectVeryWeak bool   `env:"SECUREAUTH_PASSWORD_REJECT_VERY_WEAK"`
	MemoryKiB      uint32 `env:"SECUREAUTH_ARGON2_MEMORY_KIB"`
	Iterations     uint32 `env:"SECUREAUTH_ARGON2_ITERATIONS"`
	Parallelism    uint8  `env:"SECUREAUTH_ARGON2_PARALLELISM"`
	SaltLength     uint32 `env:"SECUREAUTH_ARGON2_SALT_LEN"`
	KeyLength      uint32 `env:"SECUREAUTH_ARGON2_KEY_LEN"`
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface:
//   - SECUREAUTH_PASSWORD_MIN_LEN, SECUREAUTH_PASSWORD_MAX_LEN
//   - SECUREAUTH_PASSWORD_REJECT_VERY_WEAK
//   - SECUREAUTH_ARGON2_MEMORY_KIB, SECUREAUTH_ARGON2_ITERATIONS, SECUREAUTH_ARGON2_PARALLELISM
//   - SECUREAUTH_ARGON2_SALT_LEN, SECUREAUTH_ARGON2_KEY_LEN
//
// Unset variables keep their defaults; set-but-invalid variables are an error.
func FromEnv() (Config, error) {
	def := DefaultConfig()

	o := envOverrides{
		MinLength:      def.Policy.MinLength,
		MaxLength:      def.Policy.MaxLength,
		RejectVeryWeak: def.Policy.RejectVeryWeak,
		MemoryKiB:      def.Params.MemoryKiB,
		Iterations:     def.Params.Iterations,
		Parallelism:    def.Params.Parallelism,
		SaltLength:     def.Params.SaltLength,
		KeyLength:      def.Params.KeyLength,
	}
	if err := env.Parse(&o); err != nil {
		return Config{}, fmt.Errorf("password config: %w", err)
	}

	checks := []struct {
		key      string
		val      uint64
		min, max uint64
	}{
		{"SECUREAUTH_PASSWORD_MIN_LEN", uint64(max(o.MinLength, 0)), 1, 1024},
		{"SECUREAUTH_PASSWORD_MAX_LEN", uint64(max(o.MaxLength, 0)), 1, 4096},
		{"SECUREAUTH_ARGON2_MEMORY_KIB", uint64(o.MemoryKiB), 8 * 1024, 1024 * 1024},
		{"SECUREAUTH_ARGON2_ITERATIONS", uint64(o.Iterations), 1, 20},
		{"SECUREAUTH_ARGON2_PARALLELISM", uint64(o.Parallelism), 1, 64},
		{"SECUREAUTH_ARGON2_SALT_LEN", uint64(o.SaltLength), 8, 64},
		{"SECUREAUTH_ARGON2_KEY_LEN", uint64(o.KeyLength), 16, 64},
	}
	for _, c := range checks {
		if c.val < c.min || c.val > c.max {
			return Config{}, fmt.Errorf("%s: out of range [%d..%d]", c.key, c.min, c.max)
		}
	}

	if o.MinLength > o.MaxLength {
		return Config{}, fmt.Errorf("password policy invalid: min_len(%d) > max_len(%d)", o.MinLength, o.MaxLength)
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   o.MemoryKiB,
			Iterations:  o.Iterations,
			Parallelism: o.Parallelism,
			SaltLength:  o.SaltLength,
			KeyLength:   o.KeyLength,
		},
		Policy: Policy{
			MinLength:      o.MinLength,
			MaxLength:      o.MaxLength,
			RejectVeryWeak: o.RejectVeryWeak,
		},
	}, nil
}
