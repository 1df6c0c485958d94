package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int

	// MaxPasswordBytes caps plaintext size. Zero selects DefaultMaxPasswordBytes.
	MaxPasswordBytes int
}

// Argon2 hashes passwords with Argon2id and encodes them as PHC strings.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a ready hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}

	return &Argon2{config: cfg}, nil
}

// Hash returns a PHC-encoded Argon2id hash with a fresh random salt.
// Plaintext shorter than the configured minimum fails with ErrInvalidInput.
func (a *Argon2) Hash(password string) (string, error) {
	// Hashing uses the raw string bytes; no Unicode normalization is applied.
	if err := checkLength(password, a.config.MinLength); err != nil {
		return "", err
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", fmt.Errorf("%w: password exceeds %d bytes", ErrInvalidInput, a.config.MaxPasswordBytes)
	}

	h := phcHash{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        make([]byte, a.config.SaltLength),
		key:         make([]byte, a.config.KeyLength),
	}
	if _, err := io.ReadFull(rand.Reader, h.salt); err != nil {
		return "", fmt.Errorf("password: read salt: %w", err)
	}
	h.key = h.derive(password)
	return h.encode(), nil
}

// Verify reports whether password matches encodedHash in constant time.
func (a *Argon2) Verify(password string, encodedHash string) bool {
	if password == "" || encodedHash == "" || len(password) > a.config.MaxPasswordBytes {
		return false
	}
	h, err := decodePHC(encodedHash)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(h.derive(password), h.key) == 1
}

// NeedsUpgrade reports whether encodedHash was produced with weaker parameters
// than the current configuration. Unparseable encodings always need upgrading.
func (a *Argon2) NeedsUpgrade(encodedHash string) bool {
	h, err := decodePHC(encodedHash)
	if err != nil {
		return true
	}
	return h.memory < a.config.Memory ||
		h.time < a.config.Time ||
		h.parallelism < a.config.Parallelism ||
		uint32(len(h.key)) != a.config.KeyLength
}

// Matches reports whether encodedHash looks like an Argon2id PHC string.
func (a *Argon2) Matches(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$"+algorithmID+"$")
}

// phcHash is the decoded form of "$argon2id$v=19$m=..,t=..,p=..$salt$key".
type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

var (
	errPHCFormat  = errors.New("password: malformed argon2id encoding")
	errPHCVersion = errors.New("password: unsupported argon2 version")
	errPHCParams  = errors.New("password: invalid argon2id parameters")
	errPHCPayload = errors.New("password: invalid argon2id salt or key")
)

func (h phcHash) encode() string {
	var b strings.Builder
	b.WriteString("$" + algorithmID)
	b.WriteString("$v=" + strconv.Itoa(argon2.Version))
	fmt.Fprintf(&b, "$m=%d,t=%d,p=%d", h.memory, h.time, h.parallelism)
	b.WriteString("$" + base64.StdEncoding.EncodeToString(h.salt))
	b.WriteString("$" + base64.StdEncoding.EncodeToString(h.key))
	return b.String()
}

func (h phcHash) derive(password string) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.key)))
}

func decodePHC(encoded string) (phcHash, error) {
	var h phcHash

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != algorithmID {
		return h, errPHCFormat
	}

	rawVersion, ok := strings.CutPrefix(fields[2], "v=")
	if !ok {
		return h, errPHCFormat
	}
	if v, err := strconv.Atoi(rawVersion); err != nil || v != argon2.Version {
		return h, errPHCVersion
	}

	if err := h.decodeParams(fields[3]); err != nil {
		return h, err
	}

	var err error
	if h.salt, err = base64.StdEncoding.DecodeString(fields[4]); err != nil || len(h.salt) < int(minSaltLength) {
		return h, errPHCPayload
	}
	if h.key, err = base64.StdEncoding.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return h, errPHCPayload
	}
	return h, nil
}

// decodeParams accepts m, t and p exactly once each, in any order.
func (h *phcHash) decodeParams(field string) error {
	seen := make(map[string]bool, 3)
	for _, entry := range strings.Split(field, ",") {
		name, raw, ok := strings.Cut(entry, "=")
		if !ok || seen[name] {
			return errPHCParams
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minMemoryKB {
				return errPHCParams
			}
			h.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minTimeCost {
				return errPHCParams
			}
			h.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || uint8(v) < minParallelism {
				return errPHCParams
			}
			h.parallelism = uint8(v)
		default:
			return errPHCParams
		}
	}
	if len(seen) != 3 {
		return errPHCParams
	}
	return nil
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Memory < minMemoryKB:
		return fmt.Errorf("password: memory must be >= %d KB", minMemoryKB)
	case cfg.Time < minTimeCost:
		return fmt.Errorf("password: time must be >= %d", minTimeCost)
	case cfg.Parallelism < minParallelism:
		return fmt.Errorf("password: parallelism must be >= %d", minParallelism)
	case cfg.SaltLength < minSaltLength:
		return fmt.Errorf("password: salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return fmt.Errorf("password: key length must be >= %d", minKeyLength)
	case cfg.MinLength < 0:
		return errors.New("password: min length must be >= 0")
	}
	return nil
}
