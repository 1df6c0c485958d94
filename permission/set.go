package permission

import "math/bits"

// Capability is a bit position within a Set.
type Capability uint8

// MaxCapabilities is the width of a Set.
const MaxCapabilities = 64

// Set is a fixed 64-bit capability mask. CapAdmin acts as a root bit: a Set
// holding it reports every capability as present.
type Set uint64

// All holds every capability.
const All Set = ^Set(0)

// NewSet returns a Set holding caps.
func NewSet(caps ...Capability) Set {
	var s Set
	for _, c := range caps {
		s = s.With(c)
	}
	return s
}

// Has reports whether c is granted, directly or through CapAdmin.
func (s Set) Has(c Capability) bool {
	if c >= MaxCapabilities {
		return false
	}
	if s&(1<<CapAdmin) != 0 {
		return true
	}
	return s&(1<<c) != 0
}

// With returns s plus c.
func (s Set) With(c Capability) Set {
	if c >= MaxCapabilities {
		return s
	}
	return s | 1<<c
}

// Without returns s minus c.
func (s Set) Without(c Capability) Set {
	if c >= MaxCapabilities {
		return s
	}
	return s &^ (1 << c)
}

func (s Set) IsAdmin() bool { return s&(1<<CapAdmin) != 0 }

func (s Set) Raw() uint64 { return uint64(s) }

func (s Set) Len() int { return bits.OnesCount64(uint64(s)) }

// Names lists the registered names of the bits set in s, lowest bit first.
// Bits without a registered name are skipped.
func (s Set) Names(r *Registry) []string {
	names := make([]string, 0, s.Len())
	for bit := 0; bit < MaxCapabilities; bit++ {
		if s&(1<<bit) == 0 {
			continue
		}
		if name, ok := r.Name(Capability(bit)); ok {
			names = append(names, name)
		}
	}
	return names
}
