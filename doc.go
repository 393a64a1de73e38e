// Package goSession issues short-lived access credentials and rotating refresh
// credentials backed by a server-side session store, and detects refresh
// credential reuse.
//
// Every refresh credential names one [session.RefreshSession]. Rotation
// tombstones that record and persists its successor in the same family. A
// credential presented after its session was rotated, revoked or lost, or one
// whose fingerprint does not match the stored HMAC, revokes every session of
// its subject.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]. Concurrent rotations of one session resolve to a single
// winner through the store's conditional patch; losers receive [ErrTokenReuse].
//
// # Architecture boundaries
//
// goSession is the public surface: [Engine], [Builder], [Config] and value
// types. Flow orchestration, rate counting and audit dispatch live under
// internal/. The session record format and store backends live in session/,
// the credential signer in jwt/.
package goSession
