// Package authcore is the authentication core of a multi-role application:
// password hashing and strength policy, credential checks, JWT access and
// refresh token issuance, stateless token validation, refresh rotation, and
// the capability-based authorization decision.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], and value types
// ([Identity], [AuthResult], [MetricsSnapshot]). Persistence is a collaborator: the engine
// consumes a [CredentialStore] and, optionally, a [RevocationStore]. Throttling and audit
// dispatch live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Log or audit plaintext passwords or tokens.
//   - Reveal whether an email is registered through Login errors or timing.
//   - Hold per-call state between requests.
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Performance contract
//
// ValidateToken is the hot path. It performs no I/O: signature, expiry, and claim shape
// are checked in memory and capabilities come from the frozen role manager. Password
// hashing is bounded by Config.Password.MaxConcurrentHashes and runs off the caller's
// goroutine, so a caller whose context ends stops waiting immediately.
package authcore
