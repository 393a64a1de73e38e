// Package audit implements async event dispatching for session lifecycle events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap logger, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, subject, session, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does not decide which events
// to emit; the Engine and the flow functions do.
package audit
