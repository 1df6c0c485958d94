package rate

import "errors"

var (
	// ErrRateLimited is returned once a login identifier, client IP, or refresh
	// family has used up its budget for the current window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures of the Redis-backed Limiter.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
