// Package rate implements fixed-window request admission keyed by "route:client".
//
// # Window semantics
//
// The first hit opens a window of length W. Hits inside the window increment the
// counter; once it reaches the rule's limit further hits are denied with a retry
// delay of ceil(remaining window) seconds, never less than one. A hit after the
// window closes starts a fresh window.
//
// [Window] keeps counters in process memory and evicts stale entries lazily on each
// call. [RedisWindow] shares counters across processes using INCR plus EXPIRE on
// the first hit.
package rate
