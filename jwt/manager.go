package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret of at least MinHMACKeyBytes bytes.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key; validators only need the public key.
	MethodEd25519 SigningMethod = "ed25519"
)

// MinHMACKeyBytes is the shortest accepted HS256 secret.
const MinHMACKeyBytes = 32

// MaxLeeway caps the clock skew tolerated on expiry and issued-at checks.
const MaxLeeway = 2 * time.Minute

// Config configures a Manager.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte

	// Now overrides the clock used for issuing and expiry checks. Nil means time.Now.
	Now func() time.Time
}

// Manager issues and validates access and refresh tokens.
//
// A Manager holds only immutable key material and is safe for concurrent use.
type Manager struct {
	config     Config
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	verifyKeys map[string]any
	parser     *jwt.Parser
	now        func() time.Time
}

// NewManager validates cfg and pre-parses its keys.
//
// Every configuration fault is reported as an error wrapping ErrSigning.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("%w: access TTL must be positive", ErrSigning)
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, fmt.Errorf("%w: refresh TTL must be greater than access TTL", ErrSigning)
	}
	if cfg.Leeway < 0 || cfg.Leeway > MaxLeeway {
		return nil, fmt.Errorf("%w: invalid leeway configuration", ErrSigning)
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}

	m := &Manager{config: cfg, now: cfg.Now}
	if m.now == nil {
		m.now = time.Now
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		m.method = jwt.SigningMethodHS256
		if len(cfg.PrivateKey) < MinHMACKeyBytes {
			return nil, fmt.Errorf("%w: hs256 requires a secret of at least %d bytes", ErrSigning, MinHMACKeyBytes)
		}
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
			m.verifyKey = priv.Public()
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verifyKey = pub
		}
		if m.verifyKey == nil && len(cfg.VerifyKeys) == 0 {
			return nil, fmt.Errorf("%w: ed25519 requires a public key or verify key set", ErrSigning)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported signing method %q", ErrSigning, cfg.SigningMethod)
	}

	if len(cfg.VerifyKeys) > 0 {
		m.verifyKeys = make(map[string]any, len(cfg.VerifyKeys))
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, fmt.Errorf("%w: verify key map contains empty kid", ErrSigning)
			}
			parsed, err := m.verifyKeyFromBytes(key)
			if err != nil {
				return nil, fmt.Errorf("invalid verify key for kid %q: %w", kid, err)
			}
			m.verifyKeys[kid] = parsed
		}
		if cfg.KeyID != "" {
			if _, ok := m.verifyKeys[cfg.KeyID]; !ok {
				return nil, fmt.Errorf("%w: KeyID is not present in VerifyKeys", ErrSigning)
			}
		}
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(options...)

	return m, nil
}

// AccessTTL reports the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// CreateAccess signs an access token for s.
func (m *Manager) CreateAccess(s Subject) (Issued, error) {
	if s.UserID == "" {
		return Issued{}, ErrMissingSubject
	}
	claims := jwt.MapClaims{
		claimSubject: s.UserID,
		claimEmail:   s.Email,
		claimRoleID:  s.RoleID,
		claimIsAdmin: s.IsAdmin,
		claimType:    typeAccess,
	}
	return m.sign(claims, m.config.AccessTTL, "")
}

// CreateRefresh signs a refresh token for userID in the given token family.
// An empty family starts a new one; the chosen family is reported in Issued.Family.
func (m *Manager) CreateRefresh(userID, family string) (Issued, error) {
	if userID == "" {
		return Issued{}, ErrMissingSubject
	}
	if family == "" {
		family = uuid.NewString()
	}
	claims := jwt.MapClaims{
		claimSubject: userID,
		claimFamily:  family,
		claimType:    typeRefresh,
	}
	return m.sign(claims, m.config.RefreshTTL, family)
}

func (m *Manager) sign(claims jwt.MapClaims, ttl time.Duration, family string) (Issued, error) {
	if m.signKey == nil {
		return Issued{}, fmt.Errorf("%w: no signing key configured", ErrSigning)
	}

	now := m.now()
	expiresAt := ceilSecond(now.Add(ttl))
	id := uuid.NewString()

	claims[claimID] = id
	claims[claimIssuedAt] = jwt.NewNumericDate(now)
	claims[claimExpires] = jwt.NewNumericDate(expiresAt)
	if m.config.Issuer != "" {
		claims[claimIssuer] = m.config.Issuer
	}
	if m.config.Audience != "" {
		claims[claimAudience] = m.config.Audience
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return Issued{}, fmt.Errorf("%w: %v", ErrSigning, err)
	}

	return Issued{
		Token:     signed,
		ID:        id,
		Family:    family,
		IssuedAt:  now.Truncate(time.Second),
		ExpiresAt: expiresAt,
	}, nil
}

// ParseAccess validates an access token and returns its claims.
//
// Failures match, in checking order, ErrMalformedToken, ErrInvalidSignature,
// ErrExpiredToken and ErrMalformedClaims. A refresh token fails with
// ErrTokenTypeMismatch.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	return decodeAccess(claims)
}

// ParseRefresh validates a refresh token and returns its claims. Errors follow
// ParseAccess; an access token fails with ErrTokenTypeMismatch.
func (m *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	return decodeRefresh(claims)
}

func (m *Manager) parse(tokenStr string) (jwt.MapClaims, error) {
	if tokenStr == "" {
		return nil, ErrMalformedToken
	}

	token, err := m.parser.ParseWithClaims(tokenStr, jwt.MapClaims{}, m.keyFunc)
	if err != nil {
		return nil, classify(err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrMalformedClaims
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(m.verifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.verifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	}

	if m.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	return m.verifyKey, nil
}

// classify maps parser errors onto the validation taxonomy. The parser checks
// structure, then the signature, then registered claims, so the first matching
// case is also the earliest failing step.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	default:
		return fmt.Errorf("%w: %v", ErrMalformedClaims, err)
	}
}

func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Second)
}

func (m *Manager) verifyKeyFromBytes(key []byte) (any, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		if len(key) < MinHMACKeyBytes {
			return nil, fmt.Errorf("%w: hs256 verify key shorter than %d bytes", ErrSigning, MinHMACKeyBytes)
		}
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ed25519 private key", ErrSigning)
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid ed25519 private key type", ErrSigning)
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ed25519 public key", ErrSigning)
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid ed25519 public key type", ErrSigning)
	}
	return edKey, nil
}
