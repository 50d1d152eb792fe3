package app

import "errors"

// ValidateSecurityConfig enforces the deployment security policy at startup.
// It runs before any listener or backend is opened.
func ValidateSecurityConfig(s Settings) error {
	if err := s.Session.Validate(); err != nil {
		return err
	}
	if !s.App.Production() {
		return nil
	}
	if s.OTP.EchoCode {
		return errors.New("security policy: SECUREAUTH_OTP_ECHO_CODE must be false when SECUREAUTH_ENV=production")
	}
	if s.Auth.CookieSecret == "" {
		return errors.New("security policy: SECUREAUTH_COOKIE_SECRET is required when SECUREAUTH_ENV=production")
	}
	if !s.Auth.CookieSecure {
		return errors.New("security policy: cookies must be Secure in production")
	}
	return nil
}
