// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2] supports transparent parameter upgrades: if a stored hash was
// produced with weaker parameters, [Argon2.NeedsUpgrade] returns true so the
// caller can re-hash on the next successful login. [Argon2.DummyVerify]
// performs a full verification against a hash that can never match, letting
// callers keep response timing flat when an account does not exist.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. When to verify and what a
// failure means is decided by the Controller.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other wt package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
