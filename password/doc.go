// Package password implements argon2id password hashing with a server-side pepper.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Salt and hash are unpadded standard base64. Decoding accepts only the
// canonical form; anything else is [ErrMalformedHash], and other algorithms or
// argon2 versions are [ErrUnsupportedHash].
//
// The pepper is appended to the password before hashing and is never part of
// the encoded output. [Argon2.NeedsUpgrade] reports hashes produced with weaker
// parameters so callers can re-hash on the next successful sign-in.
//
// This package owns hashing and verification only. It does not store
// passwords and must not log plaintext or pepper material.
package password
