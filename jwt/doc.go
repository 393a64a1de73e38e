// Package jwt signs and verifies the two bearer credential classes used by goSession:
// short-lived access credentials and long-lived refresh credentials.
//
// # Credential classes
//
// Both classes are HS256 JWTs carrying iss, aud, exp, iat, the signing-key version
// (kid header and kv claim) and the subject. Refresh credentials additionally carry a
// unique session id in jti. Each class is signed with its own secret so an access
// secret cannot mint sessions.
//
// # Architecture boundaries
//
// This package is pure: no I/O, no session state. Reuse detection and persistence
// belong to the Engine and the session store.
package jwt
