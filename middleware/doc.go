// Package middleware adapts an authcore.Engine to net/http.
//
// # Guards
//
//   - [Guard] verifies the bearer access token and stores the [authcore.Identity]
//     in the request context.
//   - [RequireAdmin], [RequireCapability] and [RequireOwnerOrAdmin] apply
//     authorization requirements to an identity placed there by Guard.
//
// [WriteError] and [StatusFor] translate engine errors into HTTP responses.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Token checks are
// delegated to Engine.ValidateToken and access decisions to the permission
// package, so every route evaluates the same rule.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Touch credential or revocation storage.
//   - Echo internal error text for server-side failures.
package middleware
