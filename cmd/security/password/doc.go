// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes are PHC-style strings ($argon2id$v=19$m=..,t=..,p=..$salt$key), so the cost
// parameters travel with the hash and older hashes stay verifiable after tuning.
// Encoded hashes are treated as untrusted input: Verify refuses malformed strings and
// parameters far above the configured cost.
package password
