package jwt

import (
	"math"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim keys written into issued tokens.
const (
	claimSubject  = "sub"
	claimEmail    = "email"
	claimRoleID   = "rid"
	claimIsAdmin  = "adm"
	claimType     = "typ"
	claimFamily   = "fam"
	claimID       = "jti"
	claimIssuedAt = "iat"
	claimExpires  = "exp"
	claimIssuer   = "iss"
	claimAudience = "aud"

	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Subject is the identity embedded in an access token.
type Subject struct {
	UserID  string
	Email   string
	RoleID  uint32
	IsAdmin bool
}

// AccessClaims is the decoded, validated content of an access token.
type AccessClaims struct {
	Subject
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshClaims is the decoded, validated content of a refresh token.
type RefreshClaims struct {
	UserID    string
	Family    string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issued describes a freshly signed token.
type Issued struct {
	Token     string
	ID        string
	Family    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

var (
	accessOnlyClaims  = []string{claimEmail, claimRoleID, claimIsAdmin}
	refreshOnlyClaims = []string{claimFamily}
)

func decodeAccess(claims jwt.MapClaims) (*AccessClaims, error) {
	if err := checkType(claims, typeAccess, refreshOnlyClaims); err != nil {
		return nil, err
	}
	common, err := decodeCommon(claims)
	if err != nil {
		return nil, err
	}

	email, err := stringClaim(claims, claimEmail)
	if err != nil {
		return nil, err
	}
	isAdmin, ok := claims[claimIsAdmin].(bool)
	if !ok {
		return nil, claimError(claimIsAdmin)
	}
	rawRole, ok := claims[claimRoleID].(float64)
	if !ok || rawRole < 0 || rawRole > math.MaxUint32 || rawRole != math.Trunc(rawRole) {
		return nil, claimError(claimRoleID)
	}

	return &AccessClaims{
		Subject: Subject{
			UserID:  common.subject,
			Email:   email,
			RoleID:  uint32(rawRole),
			IsAdmin: isAdmin,
		},
		ID:        common.id,
		IssuedAt:  common.issuedAt,
		ExpiresAt: common.expiresAt,
	}, nil
}

func decodeRefresh(claims jwt.MapClaims) (*RefreshClaims, error) {
	if err := checkType(claims, typeRefresh, accessOnlyClaims); err != nil {
		return nil, err
	}
	common, err := decodeCommon(claims)
	if err != nil {
		return nil, err
	}
	family, err := stringClaim(claims, claimFamily)
	if err != nil {
		return nil, err
	}

	return &RefreshClaims{
		UserID:    common.subject,
		Family:    family,
		ID:        common.id,
		IssuedAt:  common.issuedAt,
		ExpiresAt: common.expiresAt,
	}, nil
}

type commonClaims struct {
	subject   string
	id        string
	issuedAt  time.Time
	expiresAt time.Time
}

func decodeCommon(claims jwt.MapClaims) (commonClaims, error) {
	var out commonClaims
	var err error
	if out.subject, err = stringClaim(claims, claimSubject); err != nil {
		return out, err
	}
	if out.id, err = stringClaim(claims, claimID); err != nil {
		return out, err
	}

	// exp and iat were already required and type-checked by the parser.
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return out, claimError(claimExpires)
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return out, claimError(claimIssuedAt)
	}
	out.expiresAt = exp.Time
	out.issuedAt = iat.Time
	return out, nil
}

// checkType rejects tokens of the wrong kind before any other claim is read.
func checkType(claims jwt.MapClaims, want string, forbidden []string) error {
	typ, ok := claims[claimType].(string)
	if !ok || typ == "" {
		return claimError(claimType)
	}
	if typ != want {
		return ErrTokenTypeMismatch
	}
	for _, key := range forbidden {
		if _, present := claims[key]; present {
			return ErrTokenTypeMismatch
		}
	}
	return nil
}

func stringClaim(claims jwt.MapClaims, key string) (string, error) {
	v, ok := claims[key].(string)
	if !ok || v == "" {
		return "", claimError(key)
	}
	return v, nil
}

func claimError(key string) error {
	return &ClaimError{Claim: key}
}

// ClaimError names the claim that was missing or had the wrong type.
type ClaimError struct {
	Claim string
}

func (e *ClaimError) Error() string {
	return ErrMalformedClaims.Error() + ": " + e.Claim
}

func (e *ClaimError) Unwrap() error { return ErrMalformedClaims }
