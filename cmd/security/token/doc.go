// Package token holds the secret and HMAC primitives shared by the session
// and cookie layers.
//
// Secrets come from the environment as raw strings. ParseSecret trims them and
// enforces a minimum byte length so a short or blank value fails at startup
// rather than producing weak signatures.
//
// Signer implements signed cookie values: value + "." + base64url(HMAC-SHA256(value)).
// Unsign verifies in constant time and returns ok=false for anything it cannot
// prove was produced with the same key.
package token
