package password

import (
	"fmt"
	"unicode/utf8"
)

// StrengthReport is the outcome of a Policy check. Errors keeps a fixed order:
// required, length, digit, lowercase.
type StrengthReport struct {
	Valid  bool
	Errors []string
}

// Policy checks the structure of a candidate password.
type Policy struct {
	MinLength int
}

// NewPolicy returns a Policy; a non-positive minLength selects DefaultMinLength.
func NewPolicy(minLength int) Policy {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return Policy{MinLength: minLength}
}

// Check evaluates every rule so the report lists all failures at once.
func (p Policy) Check(password string) StrengthReport {
	minLength := p.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}

	var errs []string
	if password == "" {
		errs = append(errs, "password is required")
	}
	if utf8.RuneCountInString(password) < minLength {
		errs = append(errs, fmt.Sprintf("password must be at least %d characters", minLength))
	}

	// Only ASCII 0-9 and a-z satisfy the character rules.
	var hasDigit, hasLower bool
	for _, r := range password {
		switch {
		case '0' <= r && r <= '9':
			hasDigit = true
		case 'a' <= r && r <= 'z':
			hasLower = true
		}
	}
	if !hasDigit {
		errs = append(errs, "password must contain at least one digit")
	}
	if !hasLower {
		errs = append(errs, "password must contain at least one lowercase letter")
	}

	return StrengthReport{Valid: len(errs) == 0, Errors: errs}
}
