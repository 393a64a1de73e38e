// Package session persists refresh-session records and the per-subject owner index.
//
// # Storage layout
//
// Each record lives under "<prefix>:<session id>" with a TTL equal to the refresh
// credential lifetime. The owner index is a set under "<prefix>u:<subject id>".
// Records are JSON envelopes carrying a schema version; unknown versions are
// rejected as corrupt.
//
// # Backends
//
// [RedisStore] is the production backend. [MemoryStore] implements the same [Store]
// contract for tests and single-process deployments.
//
// # Architecture boundaries
//
// This package never interprets credentials or decides reuse. It offers one
// conditional write ([Patch.IfLive]) so concurrent rotations of the same record
// resolve to a single winner.
package session
