// Package revocation tracks refresh token families so refresh tokens can be
// rotated, revoked on logout, and invalidated when a superseded token is replayed.
//
// # Rotation protocol
//
// Login opens a family with the id (jti) of the first refresh token. Each refresh
// presents the current jti and swaps in the next one atomically. Presenting any
// other jti means a copy of an old token is in circulation; the family is deleted
// and every token descending from it stops working.
//
// # Architecture boundaries
//
// Two implementations are provided: RedisStore (Lua compare-and-swap, shared by
// every instance) and MemoryStore (single process). Neither parses tokens.
//
// # What this package must NOT do
//
//   - Store token strings or signing keys.
//   - Import authcore or jwt.
package revocation
