// Package middleware holds the HTTP adapters around goSession.Engine: the
// bearer access [Guard], the per-route [RateGate] and [RequestLogger].
//
// This package translates HTTP semantics into Engine calls. It does not parse
// credentials or count requests itself.
package middleware
