package rate

import "errors"

var (
	// ErrRedisUnavailable wraps failures of the shared Redis window.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidRule is returned when a rule has a non-positive limit or window.
	ErrInvalidRule = errors.New("invalid rate rule")
)
