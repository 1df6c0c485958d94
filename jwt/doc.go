// Package jwt issues and validates the access and refresh tokens used by authcore.
//
// Tokens are compact JWTs. Access tokens carry the subject identity (user id,
// email, role id, admin flag); refresh tokens carry only the user id and the
// token family. A "typ" claim separates the two kinds so neither can be used in
// place of the other.
//
// # Validation order
//
// Validation stops at the first failing step and reports:
//
//	structure  -> ErrMalformedToken
//	signature  -> ErrInvalidSignature
//	expiry     -> ErrExpiredToken
//	claims     -> ErrMalformedClaims
//
// A token is expired once the clock reaches its exp claim. Expirations are rounded
// up to the next whole second when issued, because exp has one-second precision.
//
// # Architecture boundaries
//
// The package performs no I/O and keeps no per-token state. Revocation and refresh
// rotation live in the root package and in revocation/.
package jwt
