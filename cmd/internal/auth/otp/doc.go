// Package otp issues short-lived numeric verification codes for email
// addresses that do not yet belong to an account.
//
// No two live codes share a value. The store enforces this at insert time and
// the engine regenerates on conflict, giving up after Config.MaxAttempts.
// Each email holds at most one live code; a new request supersedes the old one.
// A successful VerifyCode consumes the code.
package otp
