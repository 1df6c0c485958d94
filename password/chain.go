package password

// Chain hashes with a primary scheme and verifies with whichever scheme
// recognizes the stored encoding.
type Chain struct {
	primary Scheme
	legacy  []Scheme
}

// NewChain returns a Chain that writes primary encodings and still accepts
// encodings produced by legacy schemes.
func NewChain(primary Scheme, legacy ...Scheme) *Chain {
	return &Chain{primary: primary, legacy: legacy}
}

func (c *Chain) Hash(password string) (string, error) {
	return c.primary.Hash(password)
}

func (c *Chain) Verify(password, encodedHash string) bool {
	scheme := c.schemeFor(encodedHash)
	if scheme == nil {
		return false
	}
	return scheme.Verify(password, encodedHash)
}

// NeedsUpgrade is true for every legacy encoding and for primary encodings
// produced with weaker parameters.
func (c *Chain) NeedsUpgrade(encodedHash string) bool {
	if !c.primary.Matches(encodedHash) {
		return true
	}
	return c.primary.NeedsUpgrade(encodedHash)
}

func (c *Chain) Matches(encodedHash string) bool {
	return c.schemeFor(encodedHash) != nil
}

func (c *Chain) schemeFor(encodedHash string) Scheme {
	if c.primary.Matches(encodedHash) {
		return c.primary
	}
	for _, s := range c.legacy {
		if s.Matches(encodedHash) {
			return s
		}
	}
	return nil
}
