package password

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// DefaultMinLength is the shortest password Hash accepts unless configured otherwise.
const DefaultMinLength = 6

// DefaultMaxPasswordBytes bounds the plaintext fed to Argon2 when unset.
const DefaultMaxPasswordBytes = 1024

// ErrInvalidInput is returned by Hash when the plaintext cannot be hashed,
// most commonly because it is shorter than the configured minimum.
var ErrInvalidInput = errors.New("invalid password input")

// Hasher is a salted, adaptive one-way password function.
//
// Verify never returns an error: empty or malformed input simply does not match.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) bool
	NeedsUpgrade(encoded string) bool
}

// Scheme is a Hasher that can recognize its own encodings.
type Scheme interface {
	Hasher
	Matches(encoded string) bool
}

func checkLength(plaintext string, minLength int) error {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if utf8.RuneCountInString(plaintext) < minLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minLength)
	}
	return nil
}
