// Package password implements password hashing, verification, and structural
// strength checks.
//
// # Output format
//
// [Argon2] hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Bcrypt] produces the standard $2a$/$2b$ modular crypt encoding. A [Chain]
// hashes with a primary scheme and still verifies encodings produced by legacy
// schemes, so [Chain.NeedsUpgrade] can drive re-hashing on the next successful
// login.
//
// # Architecture boundaries
//
// This package owns hashing, verification, and the strength [Policy]. Hashing
// is CPU bound; [Pool] bounds how many hashes run at once and lets callers
// abandon a computation when their context ends.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
