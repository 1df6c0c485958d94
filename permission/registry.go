package permission

import (
	"sync"
)

// Built-in capabilities. Their bit positions are stable across releases.
const (
	CapAdmin Capability = iota
	CapBooksManage
	CapUsersManage
	CapLoansViewAll
	CapPurchasesViewAll

	builtinCount
)

var builtinNames = [...]string{
	CapAdmin:            "admin",
	CapBooksManage:      "books.manage",
	CapUsersManage:      "users.manage",
	CapLoansViewAll:     "loans.view_all",
	CapPurchasesViewAll: "purchases.view_all",
}

// Registry maps capability names to bit positions. The built-in capabilities
// are always present; applications may register more before freezing.
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]Capability
	bitToName map[Capability]string
	frozen    bool
}

// NewRegistry returns a Registry holding the built-in capabilities.
func NewRegistry() *Registry {
	r := &Registry{
		nameToBit: make(map[string]Capability, builtinCount),
		bitToName: make(map[Capability]string, builtinCount),
	}
	for bit, name := range builtinNames {
		r.nameToBit[name] = Capability(bit)
		r.bitToName[Capability(bit)] = name
	}
	return r
}

// Register assigns the next free bit to name.
func (r *Registry) Register(name string) (Capability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return 0, ErrFrozen
	}
	if name == "" {
		return 0, ErrEmptyName
	}
	if _, exists := r.nameToBit[name]; exists {
		return 0, ErrAlreadyRegistered
	}

	next := len(r.nameToBit)
	if next >= MaxCapabilities {
		return 0, ErrCapabilityLimit
	}

	bit := Capability(next)
	r.nameToBit[name] = bit
	r.bitToName[bit] = name
	return bit, nil
}

// Lookup returns the capability registered under name.
func (r *Registry) Lookup(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the name registered for bit.
func (r *Registry) Name(bit Capability) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
