// Package rate throttles login and refresh attempts.
//
// Two implementations share the Throttle interface:
//
//   - Limiter: Redis fixed-window counters (INCR + EXPIRE on first hit), shared
//     across instances.
//   - Local: per-process token buckets from golang.org/x/time/rate, used when no
//     Redis is configured.
//
// Redis key prefixes (after Config.KeyPrefix):
//   - al:  login per identifier
//   - ali: login per IP
//   - ar:  refresh per token family
//
// # What this package must NOT do
//
//   - Decide whether credentials are valid.
//   - Be imported outside the authcore module.
package rate
