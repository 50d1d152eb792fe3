// Package session issues and verifies the bearer tokens that represent a
// logged-in user.
//
// Tokens are HS256 JWTs carrying sub, iat, nbf, exp, iss and a random jti.
// Nothing is persisted: expiry is the only way a token stops working.
// Verify reports expired, malformed and badly signed tokens as distinct errors
// so the transport layer can answer each with its own message.
package session
