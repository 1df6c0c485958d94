// Package permission holds the role and capability model and the authorization gate.
//
// A role maps to a 64-bit capability [Set]. The admin capability is a root bit:
// holding it implies every other capability. [Check] is the single decision point
// for protected operations: admin-only, capability, and owner-or-admin rules.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. Access tokens carry
// the role id; capability sets are resolved through [RoleManager] on validation.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authcore, jwt, or revocation.
//   - Change role definitions after Freeze.
package permission
