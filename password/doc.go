// Package password implements salted, adaptive-cost password hashing with
// constant-time verification.
//
// # Output format
//
// argon2id digests are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt digests use the native $2a$ format. [Multi] hashes with the configured
// algorithm and verifies either, so switching algorithms does not lock out
// existing accounts; [Hasher.NeedsRehash] flags digests to rewrite.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Length policy and the
// "password must not contain the username" rule are enforced by the engine.
// Callers must compare with Verify, never by hashing twice and comparing
// digests: every digest carries a fresh salt.
package password
